package controller

import (
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/codec"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/events"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/pipeline"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/prediction"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// detectAndResolveConflicts is steps 2+3 of spec.md §4.6: every entity
// staged during drainInbound is resolved by its configured policy and
// the winner committed to the Entity Store. For the rollback policy the
// History Buffer is only consulted to confirm that the winning tick is
// still retained; the winner's payload is then committed on top of the
// current record. No historical payload is written back into the store
// and no later inbound messages are replayed, since the Controller
// keeps no per-tick inbound log — only a live drain queue. After a
// RollbackApplied(tick, entities) event the store therefore holds each
// entity's winning candidate payload, which is not necessarily the
// History Buffer's frame at tick.
func (c *Controller) detectAndResolveConflicts(tick types.Tick) {
	if len(c.pendingConflicts) == 0 {
		return
	}

	var rolledBack []types.EntityID
	rollbackTick := tick

	for _, entityID := range sortedEntityIDs(c.pendingConflicts) {
		candidates := c.pendingConflicts[entityID]
		policy := c.config.PolicyFor(entityID)
		canRollback := func(requested types.Tick) bool {
			return requested >= c.history.OldestTick()
		}

		report, err := c.resolver.Resolve(policy, entityID, candidates, c.registry.Count(), canRollback)
		if err != nil {
			if _, expired := err.(*types.HistoryExpiredError); expired {
				c.recordViolation(report.Winner, "rollback degraded to host_authority: "+err.Error())
			} else if _, failed := err.(*types.QuorumFailedError); failed {
				c.recordViolation(report.Winner, "vote degraded to host_authority: "+err.Error())
			}
		}
		if report.EntityID == "" {
			continue
		}

		conflictsResolved.WithLabelValues(report.Policy.String()).Inc()

		if report.Policy == types.PolicyRollback && err == nil {
			// Restore serves only as a retention check on
			// report.AppliedTick (the canRollback check above already
			// guarantees it); the restored frame is not written back
			// into the store.
			if _, restoreErr := c.history.Restore(report.AppliedTick); restoreErr == nil {
				rolledBack = append(rolledBack, entityID)
				rollbackTick = report.AppliedTick
			}
		}

		c.store.ApplyResolved(entityID, report.Resolved, report.Winner, tick)
		c.events.EmitConflictResolved(events.ConflictResolved{Report: report})
	}

	if len(rolledBack) > 0 {
		rollbacksApplied.Inc()
		c.events.EmitRollbackApplied(events.RollbackApplied{Tick: rollbackTick, Entities: rolledBack})
	}

	c.pendingConflicts = make(map[types.EntityID][]types.Candidate)
}

// reconcilePredictions is step 4 of spec.md §4.6: every entity touched
// this tick (accepted or conflict-resolved) is checked against each
// connected peer's pending predictions. A peer whose oldest pending
// input has already fallen outside the retained history window cannot
// be reconciled incrementally and is marked for a full resync instead,
// per spec.md §7.
func (c *Controller) reconcilePredictions(tick types.Tick) {
	dirty := c.store.IterDirty()
	if len(dirty) == 0 {
		return
	}
	oldest := c.history.OldestTick()

	for _, record := range dirty {
		for _, peer := range c.registry.All() {
			if peer.ID == record.Owner {
				continue
			}
			discarded := c.predictor.Expire(peer.ID, record.ID, oldest)
			diff := c.predictor.Reconcile(peer.ID, record.ID, tick, record.Payload, c.config.PredictionTolerance)
			if diff == nil {
				if !discarded {
					continue
				}
				diff = &prediction.ReconciliationDiff{
					Peer: peer.ID, Entity: record.ID, Authoritative: record.Payload, AppliedTick: tick,
				}
			}
			diff.FullResync = discarded
			c.events.EmitReconciliation(events.Reconciliation{Diff: *diff})
		}
	}
}

// flushOutbound is step 6 of spec.md §4.6: every dirty entity is sent
// to every peer as a delta against the baseline that peer is known to
// have acked, or as a full payload when no baseline is recorded yet.
func (c *Controller) flushOutbound(tick types.Tick) {
	dirty := c.store.IterDirty()
	for _, record := range dirty {
		for _, peer := range c.registry.All() {
			if peer.ID == record.Owner {
				continue
			}
			baselineVersion := c.baselines.Version(c.id, peer.ID, record.ID)
			var body types.Payload
			if baselineVersion > 0 {
				body = codec.Diff(c.baselines.Payload(c.id, peer.ID, record.ID), record.Payload)
			} else {
				body = record.Payload.Clone()
			}

			msg := types.Message{
				ID: types.NewUID(), Type: types.StateUpdate, Origin: c.id, Destination: peer.ID,
				EntityID: record.ID, Version: record.Version, Baseline: baselineVersion,
				Body: body, Priority: types.PriorityNormal, RequiresAck: true,
			}
			msg.Priority = pipeline.ResolvePriority(msg, record.Lock == types.LockHeld, baselineVersion)
			c.outbound.Enqueue(msg)
		}
		c.store.ClearDirty(record.ID)
	}

	for _, msg := range c.outbound.Drain() {
		if err := c.send(msg); err != nil {
			c.recordViolation(msg.Destination, err.Error())
		}
	}
}
