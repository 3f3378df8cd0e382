package types

// AuthHook is an injection point for cryptographic authentication of
// inbound frames. No algorithm is mandated by the core (spec.md §1/§9);
// nothing in the core accepts or calls an AuthHook, so every
// inbound frame is trusted as-is.
type AuthHook interface {
	// Verify checks one inbound frame from origin; a non-nil error
	// rejects it.
	Verify(origin PeerID, frame []byte) error
}
