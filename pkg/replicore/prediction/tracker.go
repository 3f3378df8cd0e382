// Package prediction implements client-side prediction tracking and
// server reconciliation (spec.md §3 PredictionRecord, §4.6 step 4).
// The teacher has no direct analogue; grounded on the observer/notify
// pattern in core/peer.go (Command registers a channel notified on
// delivery), reused here as the shape for "notify on reconciliation".
package prediction

import (
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// ReconciliationDiff is emitted when an authoritative update disagrees
// with a peer's prediction for the same entity beyond tolerance.
// FullResync is set when the peer has drifted beyond the rollback
// window and must discard local state entirely in favor of a fresh
// snapshot, per spec.md §7.
type ReconciliationDiff struct {
	Peer          types.PeerID
	Entity        types.EntityID
	InputID       types.UID
	Predicted     types.Payload
	Authoritative types.Payload
	AppliedTick   types.Tick
	FullResync    bool
}

type trackerKey struct {
	peer   types.PeerID
	entity types.EntityID
}

// Tracker owns every peer's pending PredictionRecords.
type Tracker struct {
	records map[trackerKey]*types.PredictionRecord
}

func NewTracker() *Tracker {
	return &Tracker{records: make(map[trackerKey]*types.PredictionRecord)}
}

// Record appends a new predicted input for peer/entity.
func (t *Tracker) Record(peer types.PeerID, entity types.EntityID, input types.PredictionInput) {
	key := trackerKey{peer, entity}
	record, ok := t.records[key]
	if !ok {
		record = &types.PredictionRecord{Peer: peer, Entity: entity}
		t.records[key] = record
	}
	record.Inputs = append(record.Inputs, input)
}

// Pending returns the prediction record for peer/entity, if any.
func (t *Tracker) Pending(peer types.PeerID, entity types.EntityID) (*types.PredictionRecord, bool) {
	record, ok := t.records[trackerKey{peer, entity}]
	return record, ok
}

// Reconcile compares the authoritative payload applied at
// authoritativeTick against the most recent prediction at or before
// that tick. Predictions at or before the tick are consumed; later,
// unacked predictions remain pending for the next reconciliation pass.
// Returns a diff only when the consumed prediction disagrees with the
// authoritative payload beyond tolerance.
func (t *Tracker) Reconcile(peer types.PeerID, entity types.EntityID, authoritativeTick types.Tick, authoritative types.Payload, tolerance float64) *ReconciliationDiff {
	key := trackerKey{peer, entity}
	record, ok := t.records[key]
	if !ok || len(record.Inputs) == 0 {
		return nil
	}

	var consumed []types.PredictionInput
	var remaining []types.PredictionInput
	for _, in := range record.Inputs {
		if in.OriginatingTick <= authoritativeTick {
			consumed = append(consumed, in)
		} else {
			remaining = append(remaining, in)
		}
	}
	record.Inputs = remaining
	if len(record.Inputs) == 0 {
		delete(t.records, key)
	}
	if len(consumed) == 0 {
		return nil
	}

	latest := consumed[len(consumed)-1]
	if payloadWithinTolerance(latest.PredictedPayload, authoritative, tolerance) {
		return nil
	}
	return &ReconciliationDiff{
		Peer:          peer,
		Entity:        entity,
		InputID:       latest.InputID,
		Predicted:     latest.PredictedPayload,
		Authoritative: authoritative,
		AppliedTick:   authoritativeTick,
	}
}

// Expire drops every prediction for peer/entity older than the
// retained rollback window, returning true if anything was discarded.
// A discarded prediction means the peer must full-resync, per
// spec.md §7's "a prediction that cannot be reconciled within the
// window is discarded and the peer receives a snapshot".
func (t *Tracker) Expire(peer types.PeerID, entity types.EntityID, oldestRetainedTick types.Tick) bool {
	key := trackerKey{peer, entity}
	record, ok := t.records[key]
	if !ok {
		return false
	}
	var keep []types.PredictionInput
	discarded := false
	for _, in := range record.Inputs {
		if in.OriginatingTick < oldestRetainedTick {
			discarded = true
			continue
		}
		keep = append(keep, in)
	}
	record.Inputs = keep
	if len(record.Inputs) == 0 {
		delete(t.records, key)
	}
	return discarded
}

// Forget drops every prediction for peer, used on disconnect.
func (t *Tracker) Forget(peer types.PeerID) {
	for key := range t.records {
		if key.peer == peer {
			delete(t.records, key)
		}
	}
}

func payloadWithinTolerance(predicted, authoritative types.Payload, tolerance float64) bool {
	if len(predicted) != len(authoritative) {
		return false
	}
	for name, pv := range predicted {
		av, ok := authoritative[name]
		if !ok {
			return false
		}
		pf, pok := pv.AsFloat64()
		af, aok := av.AsFloat64()
		if pok && aok {
			diff := pf - af
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				return false
			}
			continue
		}
		if !pv.Equal(av) {
			return false
		}
	}
	return true
}
