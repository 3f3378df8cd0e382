package store

import (
	"testing"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func payloadWithX(x int64) types.Payload {
	return types.Payload{"x": types.IntValue(x)}
}

func TestStore_WriteCreatesOnFirstWrite(t *testing.T) {
	s := New()
	outcome := s.Write("e1", payloadWithX(1), "peerA", 10)
	if outcome.Kind != types.WriteAccepted {
		t.Fatalf("expected WriteAccepted, got %v", outcome.Kind)
	}
	if outcome.Version != 1 {
		t.Fatalf("expected version 1, got %d", outcome.Version)
	}

	record, ok := s.Read("e1")
	if !ok {
		t.Fatal("expected record to exist")
	}
	if !record.Payload.Equal(payloadWithX(1)) {
		t.Errorf("unexpected payload %v", record.Payload)
	}
}

func TestStore_WriteRejectsOlderTick(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 10)

	outcome := s.Write("e1", payloadWithX(2), "peerA", 5)
	if outcome.Kind != types.WriteConflict {
		t.Fatalf("expected WriteConflict, got %v", outcome.Kind)
	}
}

func TestStore_WriteConflictsOnSameTick(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 10)

	// spec.md §4.6 step 2: an entity that "already received an update
	// at the same or later tick" must route to conflict resolution,
	// not silently overwrite in arrival order.
	outcome := s.Write("e1", payloadWithX(2), "peerB", 10)
	if outcome.Kind != types.WriteConflict {
		t.Fatalf("expected WriteConflict for a same-tick write, got %v", outcome.Kind)
	}
}

func TestStore_WriteLockedOutByOtherPeer(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 1)

	decision, _ := s.RequestLock("e1", "peerB", 100, 1)
	if decision != LockAlreadyPending {
		t.Fatalf("expected LockAlreadyPending, got %v", decision)
	}
	if !s.ConfirmLock("e1", "peerB") {
		t.Fatal("expected lock to confirm")
	}

	outcome := s.Write("e1", payloadWithX(2), "peerA", 2)
	if outcome.Kind != types.WriteLockedOut {
		t.Fatalf("expected WriteLockedOut, got %v", outcome.Kind)
	}
	if outcome.LockHolder != "peerB" {
		t.Errorf("expected lock holder peerB, got %s", outcome.LockHolder)
	}
}

func TestStore_LockRequestRenewsOwnLock(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 1)

	s.RequestLock("e1", "peerB", 10, 1)
	s.ConfirmLock("e1", "peerB")

	decision, holder := s.RequestLock("e1", "peerB", 20, 5)
	if decision != LockGranted {
		t.Fatalf("expected LockGranted on renewal, got %v", decision)
	}
	if holder != "peerB" {
		t.Errorf("expected holder peerB, got %s", holder)
	}
}

func TestStore_SweepExpiredLocksReleasesAndReports(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 1)
	s.RequestLock("e1", "peerB", 5, 1)
	s.ConfirmLock("e1", "peerB")

	expired := s.SweepExpiredLocks(100)
	if len(expired) != 1 || expired[0] != "e1" {
		t.Fatalf("expected e1 to expire, got %v", expired)
	}

	decision, _ := s.RequestLock("e1", "peerC", 5, 101)
	if decision != LockAlreadyPending {
		t.Fatalf("expected the lock to be free after expiry, got %v", decision)
	}
}

func TestStore_ReleaseLocksForPeerCascades(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 1)
	s.Write("e2", payloadWithX(2), "peerA", 1)
	s.RequestLock("e1", "peerB", 100, 1)
	s.ConfirmLock("e1", "peerB")
	s.RequestLock("e2", "peerB", 100, 1)
	s.ConfirmLock("e2", "peerB")

	released := s.ReleaseLocksForPeer("peerB")
	if len(released) != 2 {
		t.Fatalf("expected both locks released, got %v", released)
	}
}

func TestStore_DirtyTrackingAndClear(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 1)
	s.Write("e2", payloadWithX(2), "peerA", 1)

	dirty := s.IterDirty()
	if len(dirty) != 2 {
		t.Fatalf("expected 2 dirty records, got %d", len(dirty))
	}

	s.ClearDirty("e1")
	s.ClearDirty("e2")
	if len(s.IterDirty()) != 0 {
		t.Fatalf("expected no dirty records after clear")
	}
}

func TestStore_SnapshotAndRestoreRoundTrip(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(7), "peerA", 1)

	snap := s.Snapshot()

	s.Write("e1", payloadWithX(99), "peerA", 2)

	s.Restore(snap)
	record, _ := s.Read("e1")
	if !record.Payload.Equal(payloadWithX(7)) {
		t.Errorf("expected restored payload x=7, got %v", record.Payload)
	}
}

func TestStore_ApplyResolvedBypassesTickOrdering(t *testing.T) {
	s := New()
	s.Write("e1", payloadWithX(1), "peerA", 10)

	// A conflict resolution winner may carry a tick older than the
	// current LastAcceptedTick; ApplyResolved must still commit it.
	version := s.ApplyResolved("e1", payloadWithX(42), "peerB", 3)
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
	record, _ := s.Read("e1")
	if !record.Payload.Equal(payloadWithX(42)) {
		t.Errorf("expected resolved payload, got %v", record.Payload)
	}
	if record.Owner != "peerB" {
		t.Errorf("expected owner peerB, got %s", record.Owner)
	}
}
