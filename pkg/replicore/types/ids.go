package types

import "github.com/google/uuid"

// UID identifies a message or a client-predicted input. It is generated
// by the issuing peer and carried opaquely by the core.
type UID string

// NewUID mints a fresh, globally unique identifier.
func NewUID() UID {
	return UID(uuid.NewString())
}

// PeerID identifies a peer. Stable for the lifetime of the connection.
type PeerID string

// Broadcast is the destination value meaning "all connected peers".
const Broadcast PeerID = "*"

// EntityID identifies a replicated entity record.
type EntityID string

// Tick is a monotonic simulation quantum number.
type Tick uint64
