package types

// PredictionInput is a single client-predicted step: the input that
// produced it, the locally-predicted payload, and the tick it
// originated at. Retained until the authoritative update for that tick
// (or later) arrives, or the rollback window expires.
type PredictionInput struct {
	InputID          UID
	InputPayload     Payload
	PredictedPayload Payload
	OriginatingTick  Tick
}

// PredictionRecord tracks a peer's unreconciled predicted inputs for a
// single entity, oldest first.
type PredictionRecord struct {
	Peer   PeerID
	Entity EntityID
	Inputs []PredictionInput
}
