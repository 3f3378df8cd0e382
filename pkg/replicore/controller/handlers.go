package controller

import (
	"time"

	"github.com/hashicorp/go-version"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/events"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// handle dispatches a single drained inbound message to the handler
// for its type, per spec.md §4.6 step 1. Handlers are pure over
// (Registry, Store, History, Predictions) and either commit a
// mutation directly or, for state updates in conflict, stage a
// candidate for step 2.
func (c *Controller) handle(msg types.Message, tick types.Tick) {
	if peer, ok := c.registry.Get(msg.Origin); ok && !peer.Allows(msg.Type) {
		c.recordViolation(msg.Origin, "peer not permitted to send "+msg.Type.String())
		return
	}

	switch msg.Type {
	case types.StateUpdate, types.Delta:
		c.handleStateUpdate(msg, tick)
	case types.LockRequest:
		c.handleLockRequest(msg, tick)
	case types.LockRelease:
		c.handleLockRelease(msg)
	case types.Ack:
		c.handleAck(msg)
	case types.Ping:
		c.handlePing(msg)
	case types.Pong:
		c.handlePong(msg)
	case types.Join:
		c.handleJoin(msg)
	case types.Leave:
		c.handleLeave(msg)
	case types.Heartbeat:
		c.registry.MarkHeard(msg.Origin, time.Now())
	case types.StateRequest:
		c.handleStateRequest(msg)
	default:
		// snapshot, command, event, lock_response, conflict,
		// rollback_notice: informational or client-side-only types the
		// host does not need to act on beyond delivery.
	}
}

func (c *Controller) handleStateUpdate(msg types.Message, tick types.Tick) {
	outcome := c.store.Write(msg.EntityID, msg.Body, msg.Origin, tick)
	switch outcome.Kind {
	case types.WriteAccepted:
		c.events.EmitEntityAccepted(events.EntityAccepted{Entity: msg.EntityID, Version: outcome.Version})
	case types.WriteLockedOut:
		c.replyRejected(msg, types.ReasonLockedOut, outcome.LockHolder)
	case types.WriteConflict:
		record, _ := c.store.Read(msg.EntityID)
		candidate := types.Candidate{Origin: msg.Origin, Tick: tick, Version: msg.Version, Sequence: msg.Sequence, Payload: msg.Body}
		if _, staged := c.pendingConflicts[msg.EntityID]; !staged && record != nil {
			// Seed the candidate set with the record's own current
			// writer so the conflict policy sees every contender.
			c.pendingConflicts[msg.EntityID] = []types.Candidate{{
				Origin: record.Owner, Tick: record.LastAcceptedTick, Version: record.Version, Payload: record.Payload,
			}}
		}
		c.pendingConflicts[msg.EntityID] = append(c.pendingConflicts[msg.EntityID], candidate)
	}
}

func (c *Controller) handleLockRequest(msg types.Message, tick types.Tick) {
	decision, holder := c.store.RequestLock(msg.EntityID, msg.Origin, c.config.LockTTLTicks, tick)
	switch decision {
	case types.LockDenied:
		c.events.EmitLockDenied(events.LockDenied{Entity: msg.EntityID, Peer: msg.Origin, Holder: holder})
		c.replyRejected(msg, types.ReasonLockedOut, holder)
	default:
		// Single-host deployments confirm synchronously within the
		// same tick, per spec.md §4.3.
		if c.store.ConfirmLock(msg.EntityID, msg.Origin) {
			c.events.EmitLockGranted(events.LockGranted{Entity: msg.EntityID, Peer: msg.Origin})
			c.outbound.Enqueue(types.Message{
				ID: types.NewUID(), Type: types.LockResponse, Origin: c.id,
				Destination: msg.Origin, EntityID: msg.EntityID, Priority: types.PriorityCritical,
			})
		}
	}
}

func (c *Controller) handleLockRelease(msg types.Message) {
	c.store.ReleaseLock(msg.EntityID, msg.Origin)
}

func (c *Controller) handleAck(msg types.Message) {
	if _, ok := c.acks.Acknowledge(msg.ID); ok {
		if record, found := c.store.Read(msg.EntityID); found {
			c.baselines.Advance(c.id, msg.Origin, msg.EntityID, record.Version, record.Payload)
		}
	}
}

func (c *Controller) handlePing(msg types.Message) {
	c.outbound.Enqueue(types.Message{
		ID: types.NewUID(), Type: types.Pong, Origin: c.id, Destination: msg.Origin,
		Priority: types.PriorityNormal,
	})
}

func (c *Controller) handlePong(msg types.Message) {
	if peer, ok := c.registry.Get(msg.Origin); ok {
		rtt := time.Since(peer.LastHeard)
		c.registry.RecordRTT(msg.Origin, rtt)
	}
	c.registry.MarkHeard(msg.Origin, time.Now())
}

func (c *Controller) handleJoin(msg types.Message) {
	role := types.RoleClient
	if v, ok := msg.Body["role"]; ok {
		role = types.Role(v.Int64)
	}
	remoteVersion := c.config.ProtocolVersion
	if v, ok := msg.Body["protocol_version"]; ok {
		remoteVersion = v.Str
	}
	if !compatibleProtocolVersion(c.config.ProtocolVersion, remoteVersion) {
		c.recordViolation(msg.Origin, "incompatible protocol version "+remoteVersion)
		return
	}

	if err := c.registry.Attach(msg.Origin, role, remoteVersion, time.Now()); err != nil {
		c.recordViolation(msg.Origin, err.Error())
		return
	}
	c.events.EmitPeerJoined(events.PeerJoined{Peer: msg.Origin, Role: role})
}

func (c *Controller) handleLeave(msg types.Message) {
	c.registry.Detach(msg.Origin)
	for _, entityID := range c.store.ReleaseLocksForPeer(msg.Origin) {
		c.events.EmitLockDenied(events.LockDenied{Entity: entityID, Peer: msg.Origin})
	}
	c.baselines.Forget(msg.Origin)
	c.predictor.Forget(msg.Origin)
	c.events.EmitPeerLeft(events.PeerLeft{Peer: msg.Origin})
}

func (c *Controller) handleStateRequest(msg types.Message) {
	record, ok := c.store.Read(msg.EntityID)
	if !ok {
		return
	}
	c.outbound.Enqueue(types.Message{
		ID: types.NewUID(), Type: types.Snapshot, Origin: c.id, Destination: msg.Origin,
		EntityID: msg.EntityID, Version: record.Version, Body: record.Payload, Priority: types.PriorityCritical,
	})
}

func (c *Controller) replyRejected(msg types.Message, reason types.RejectReason, holder types.PeerID) {
	c.outbound.Enqueue(types.Message{
		ID: types.NewUID(), Type: types.Conflict, Origin: c.id, Destination: msg.Origin,
		EntityID: msg.EntityID, Priority: types.PriorityCritical,
		Body: types.Payload{
			"reason": types.StringValue(reason.String()),
			"holder": types.StringValue(string(holder)),
		},
	})
}

// compatibleProtocolVersion allows a joining peer whose major version
// matches the local configuration; minor/patch drift is tolerated.
func compatibleProtocolVersion(local, remote string) bool {
	localV, err := version.NewVersion(local)
	if err != nil {
		return true
	}
	remoteV, err := version.NewVersion(remote)
	if err != nil {
		return false
	}
	return localV.Segments()[0] == remoteV.Segments()[0]
}
