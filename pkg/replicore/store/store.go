// Package store implements the Entity Store (spec.md §4.3): a
// versioned map of entity id -> replicated record plus lock metadata.
package store

import (
	"sort"
	"sync"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// LockDecision is the result of a lock request or confirmation.
type LockDecision uint8

const (
	LockGranted LockDecision = iota
	LockDenied
	LockAlreadyPending
)

// Store owns every EntityRecord. Mutated only inside the Controller's
// tick, grounded on the teacher's types.InMemoryStateMachine single
// authoritative write path (pkg/mcast/types/state_machine.go),
// generalized here to per-entity versioning and the three-state lock
// machine.
type Store struct {
	mutex   sync.RWMutex
	records map[types.EntityID]*types.EntityRecord
}

func New() *Store {
	return &Store{records: make(map[types.EntityID]*types.EntityRecord)}
}

// Read returns a copy of the record for id, if any.
func (s *Store) Read(id types.EntityID) (*types.EntityRecord, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Write applies an accepted write per spec.md §4.3:
//   - if the record does not exist, it is created with version 1;
//   - if locked by a peer other than origin, WriteLockedOut;
//   - if tick is no newer than the record's last-accepted tick (§4.6
//     step 2: "already received an update at the same or later tick"),
//     WriteConflict (the caller must route candidates through conflict
//     resolution instead of applying this write directly);
//   - otherwise the record is replaced, version incremented, dirty set.
func (s *Store) Write(id types.EntityID, payload types.Payload, origin types.PeerID, tick types.Tick) types.WriteOutcome {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[id]
	if !exists {
		record = &types.EntityRecord{ID: id, Lock: types.LockFree}
		s.records[id] = record
	}

	if record.Lock == types.LockHeld && record.LockHolder != origin {
		return types.WriteOutcome{Kind: types.WriteLockedOut, LockHolder: record.LockHolder}
	}

	if exists && tick <= record.LastAcceptedTick {
		return types.WriteOutcome{Kind: types.WriteConflict, Version: record.Version}
	}

	record.Payload = payload.Clone()
	record.Owner = origin
	record.LastAcceptedTick = tick
	record.Version++
	record.Dirty = true
	return types.WriteOutcome{Kind: types.WriteAccepted, Version: record.Version}
}

// ApplyResolved commits a conflict-resolution winner directly, used by
// the Controller after a ConflictReport has been produced. It bypasses
// the lock/tick ordering checks of Write since the conflict policy has
// already made the authoritative decision.
func (s *Store) ApplyResolved(id types.EntityID, payload types.Payload, owner types.PeerID, tick types.Tick) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[id]
	if !exists {
		record = &types.EntityRecord{ID: id, Lock: types.LockFree}
		s.records[id] = record
	}
	record.Payload = payload.Clone()
	record.Owner = owner
	record.LastAcceptedTick = tick
	record.Version++
	record.Dirty = true
	return record.Version
}

// RequestLock moves a free entity's lock to Pending, holder = peer,
// expiring at currentTick+ttlTicks, and reports LockAlreadyPending. A
// request by the peer that already holds or has requested the lock
// renews the TTL and reports Granted if held, LockAlreadyPending if
// still pending. A request against a lock held or pending for someone
// else is Denied.
func (s *Store) RequestLock(id types.EntityID, peer types.PeerID, ttlTicks types.Tick, currentTick types.Tick) (LockDecision, types.PeerID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[id]
	if !exists {
		record = &types.EntityRecord{ID: id, Lock: types.LockFree}
		s.records[id] = record
	}

	switch record.Lock {
	case types.LockFree:
		record.Lock = types.LockPending
		record.LockHolder = peer
		record.LockExpiry = currentTick + ttlTicks
		return LockAlreadyPending, peer
	case types.LockPending, types.LockHeld:
		if record.LockHolder == peer {
			record.LockExpiry = currentTick + ttlTicks
			if record.Lock == types.LockHeld {
				return LockGranted, peer
			}
			return LockAlreadyPending, peer
		}
		return LockDenied, record.LockHolder
	default:
		return LockDenied, record.LockHolder
	}
}

// ConfirmLock finalizes a Pending lock held by peer into Held. Returns
// false if the entity doesn't exist, isn't pending, or is pending for a
// different peer.
func (s *Store) ConfirmLock(id types.EntityID, peer types.PeerID) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, ok := s.records[id]
	if !ok || record.Lock != types.LockPending || record.LockHolder != peer {
		return false
	}
	record.Lock = types.LockHeld
	return true
}

// DenyLock reverts a Pending lock held by peer back to Free.
func (s *Store) DenyLock(id types.EntityID, peer types.PeerID) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, ok := s.records[id]
	if !ok || record.Lock != types.LockPending || record.LockHolder != peer {
		return false
	}
	record.Lock = types.LockFree
	record.LockHolder = ""
	return true
}

// ReleaseLock frees id's lock if currently held or pending by peer.
func (s *Store) ReleaseLock(id types.EntityID, peer types.PeerID) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, ok := s.records[id]
	if !ok || record.LockHolder != peer || record.Lock == types.LockFree {
		return false
	}
	record.Lock = types.LockFree
	record.LockHolder = ""
	return true
}

// SweepExpiredLocks releases every lock (held or pending) whose expiry
// tick has passed, returning the affected entity ids. Called from the
// Controller's per-tick maintenance step.
func (s *Store) SweepExpiredLocks(currentTick types.Tick) []types.EntityID {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var expired []types.EntityID
	for id, record := range s.records {
		if record.Lock != types.LockFree && currentTick > record.LockExpiry {
			record.Lock = types.LockFree
			record.LockHolder = ""
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	return expired
}

// ReleaseLocksForPeer releases every lock held by peer, used when a
// peer times out or disconnects (spec.md §4.2: "removal cascades to
// lock release for every entity whose holder is that peer").
func (s *Store) ReleaseLocksForPeer(peer types.PeerID) []types.EntityID {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var released []types.EntityID
	for id, record := range s.records {
		if record.LockHolder == peer && record.Lock != types.LockFree {
			record.Lock = types.LockFree
			record.LockHolder = ""
			released = append(released, id)
		}
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	return released
}

// IterDirty returns every record currently marked dirty, sorted by id
// for deterministic iteration order.
func (s *Store) IterDirty() []*types.EntityRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var dirty []*types.EntityRecord
	for _, record := range s.records {
		if record.Dirty {
			dirty = append(dirty, record.Clone())
		}
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].ID < dirty[j].ID })
	return dirty
}

// ClearDirty resets the dirty flag for id after it has been flushed
// outbound and snapshotted.
func (s *Store) ClearDirty(id types.EntityID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if record, ok := s.records[id]; ok {
		record.Dirty = false
	}
}

// Snapshot returns every entity's current payload, used by the History
// Buffer to record the end-of-tick frame.
func (s *Store) Snapshot() map[types.EntityID]types.Payload {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make(map[types.EntityID]types.Payload, len(s.records))
	for id, record := range s.records {
		out[id] = record.Payload.Clone()
	}
	return out
}

// Restore overwrites every recorded entity's payload with the given
// frame contents, used by History Buffer restore (rollback).
func (s *Store) Restore(entities map[types.EntityID]types.Payload) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, payload := range entities {
		record, ok := s.records[id]
		if !ok {
			record = &types.EntityRecord{ID: id, Lock: types.LockFree}
			s.records[id] = record
		}
		record.Payload = payload.Clone()
		record.Dirty = true
	}
}

// Count returns the number of tracked entities.
func (s *Store) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records)
}
