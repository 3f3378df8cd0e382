package pipeline

import "github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"

type baselineKey struct {
	sender   types.PeerID
	receiver types.PeerID
	entity   types.EntityID
}

type baselineEntry struct {
	version uint64
	payload types.Payload
}

// BaselineTracker records, per (sender, receiver, entity), the highest
// version and matching payload the receiver is known to possess, so
// outbound state_updates can be expressed as a delta against it. It
// advances only when an ack confirms receipt, per spec.md §4.5.
type BaselineTracker struct {
	entries map[baselineKey]baselineEntry
}

func NewBaselineTracker() *BaselineTracker {
	return &BaselineTracker{entries: make(map[baselineKey]baselineEntry)}
}

// Version returns the version the receiver is believed to hold for
// entity as sent by sender, or 0 if none is recorded (meaning a full
// payload, not a delta, must be sent).
func (b *BaselineTracker) Version(sender, receiver types.PeerID, entity types.EntityID) uint64 {
	return b.entries[baselineKey{sender, receiver, entity}].version
}

// Payload returns the payload recorded alongside the current baseline
// version, or nil if none is recorded.
func (b *BaselineTracker) Payload(sender, receiver types.PeerID, entity types.EntityID) types.Payload {
	return b.entries[baselineKey{sender, receiver, entity}].payload
}

// Advance records that receiver has acked version/payload of entity as
// sent by sender. It never regresses a previously recorded higher
// version.
func (b *BaselineTracker) Advance(sender, receiver types.PeerID, entity types.EntityID, version uint64, payload types.Payload) {
	key := baselineKey{sender, receiver, entity}
	if version > b.entries[key].version {
		b.entries[key] = baselineEntry{version: version, payload: payload.Clone()}
	}
}

// Forget drops every baseline entry for receiver, used when a peer
// disconnects and must full-resync on reconnect.
func (b *BaselineTracker) Forget(receiver types.PeerID) {
	for key := range b.entries {
		if key.receiver == receiver {
			delete(b.entries, key)
		}
	}
}
