// Package events implements the observable event surface (spec.md §6,
// §9): a tagged-variant Event type with typed subscriber registration,
// replacing the teacher's string-keyed in-process publish/subscribe
// with explicit per-kind subscription, per spec.md §9's redesign
// direction. Grounded on the teacher's observer/notify-channel pattern
// (core/peer.go's Command registering a channel notified on delivery),
// generalized from one-observer-per-request to one bus per
// Controller.
package events

import (
	"sync"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/prediction"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// PeerJoined is emitted when the Peer Registry accepts a new peer.
type PeerJoined struct {
	Peer types.PeerID
	Role types.Role
}

// PeerLeft is emitted when a peer is detached, explicitly or via
// timeout.
type PeerLeft struct {
	Peer types.PeerID
}

// EntityAccepted is emitted for every write the Entity Store commits.
type EntityAccepted struct {
	Entity  types.EntityID
	Version uint64
}

// ConflictResolved carries the output of a conflict-resolution pass.
type ConflictResolved struct {
	Report types.ConflictReport
}

// Reconciliation carries a prediction.ReconciliationDiff for a peer
// whose local prediction disagreed with the authoritative update.
type Reconciliation struct {
	Diff prediction.ReconciliationDiff
}

// MessageTimeout is emitted when a message exhausts its ack retries.
type MessageTimeout struct {
	MessageID types.UID
}

// LockGranted is emitted when a pending lock is confirmed.
type LockGranted struct {
	Entity types.EntityID
	Peer   types.PeerID
}

// LockDenied is emitted when a lock request is rejected, and also when
// a lock is released by the TTL sweep (Peer and Holder empty) or
// because its holder left or timed out (Peer set to that holder).
type LockDenied struct {
	Entity types.EntityID
	Peer   types.PeerID
	Holder types.PeerID
}

// SnapshotTaken is emitted once per tick after the History Buffer
// records the end-of-tick frame.
type SnapshotTaken struct {
	Tick types.Tick
}

// RollbackApplied is emitted after rollback-policy conflicts commit
// their winners for ticks still retained by the History Buffer. No
// inbound messages are replayed.
type RollbackApplied struct {
	Tick     types.Tick
	Entities []types.EntityID
}

// Bus dispatches events to typed subscribers, synchronously, in
// subscription order, inside the Controller's tick — there is no
// queueing or async delivery, consistent with the single-threaded
// cooperative model of spec.md §5.
type Bus struct {
	mutex sync.Mutex

	onPeerJoined        []func(PeerJoined)
	onPeerLeft          []func(PeerLeft)
	onEntityAccepted    []func(EntityAccepted)
	onConflictResolved  []func(ConflictResolved)
	onReconciliation    []func(Reconciliation)
	onMessageTimeout    []func(MessageTimeout)
	onLockGranted       []func(LockGranted)
	onLockDenied        []func(LockDenied)
	onSnapshotTaken     []func(SnapshotTaken)
	onRollbackApplied   []func(RollbackApplied)
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) OnPeerJoined(fn func(PeerJoined)) { b.onPeerJoined = append(b.onPeerJoined, fn) }
func (b *Bus) OnPeerLeft(fn func(PeerLeft))     { b.onPeerLeft = append(b.onPeerLeft, fn) }
func (b *Bus) OnEntityAccepted(fn func(EntityAccepted)) {
	b.onEntityAccepted = append(b.onEntityAccepted, fn)
}
func (b *Bus) OnConflictResolved(fn func(ConflictResolved)) {
	b.onConflictResolved = append(b.onConflictResolved, fn)
}
func (b *Bus) OnReconciliation(fn func(Reconciliation)) {
	b.onReconciliation = append(b.onReconciliation, fn)
}
func (b *Bus) OnMessageTimeout(fn func(MessageTimeout)) {
	b.onMessageTimeout = append(b.onMessageTimeout, fn)
}
func (b *Bus) OnLockGranted(fn func(LockGranted)) { b.onLockGranted = append(b.onLockGranted, fn) }
func (b *Bus) OnLockDenied(fn func(LockDenied))   { b.onLockDenied = append(b.onLockDenied, fn) }
func (b *Bus) OnSnapshotTaken(fn func(SnapshotTaken)) {
	b.onSnapshotTaken = append(b.onSnapshotTaken, fn)
}
func (b *Bus) OnRollbackApplied(fn func(RollbackApplied)) {
	b.onRollbackApplied = append(b.onRollbackApplied, fn)
}

func (b *Bus) EmitPeerJoined(e PeerJoined) {
	b.mutex.Lock()
	subs := b.onPeerJoined
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitPeerLeft(e PeerLeft) {
	b.mutex.Lock()
	subs := b.onPeerLeft
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitEntityAccepted(e EntityAccepted) {
	b.mutex.Lock()
	subs := b.onEntityAccepted
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitConflictResolved(e ConflictResolved) {
	b.mutex.Lock()
	subs := b.onConflictResolved
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitReconciliation(e Reconciliation) {
	b.mutex.Lock()
	subs := b.onReconciliation
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitMessageTimeout(e MessageTimeout) {
	b.mutex.Lock()
	subs := b.onMessageTimeout
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitLockGranted(e LockGranted) {
	b.mutex.Lock()
	subs := b.onLockGranted
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitLockDenied(e LockDenied) {
	b.mutex.Lock()
	subs := b.onLockDenied
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitSnapshotTaken(e SnapshotTaken) {
	b.mutex.Lock()
	subs := b.onSnapshotTaken
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (b *Bus) EmitRollbackApplied(e RollbackApplied) {
	b.mutex.Lock()
	subs := b.onRollbackApplied
	b.mutex.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}
