// Package transport defines the injected Transport adapter (spec.md
// §6) and a LoopbackTransport reference implementation for tests and
// the demo CLI. Grounded on the teacher's Transport interface and
// ReliableTransport (pkg/mcast/core/transport.go), generalized from
// partition Broadcast/Unicast to the spec's peer-addressed
// Send/OnReceive contract. LoopbackTransport is explicitly not a real
// socket/WebRTC transport, per spec.md's Non-goals.
package transport

import (
	"context"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// Transport is the injected communication primitive. Bytes are opaque
// to the transport: the core encodes/decodes frames via codec.
type Transport interface {
	// Send delivers frame to dest, or to every connected peer if dest
	// is types.Broadcast.
	Send(ctx context.Context, dest types.PeerID, frame []byte) error

	// OnReceive registers the callback invoked for every inbound frame.
	// Only one handler is supported; a later call replaces the prior one.
	OnReceive(handler func(origin types.PeerID, frame []byte))

	// Close releases the transport's resources. Idempotent.
	Close() error
}
