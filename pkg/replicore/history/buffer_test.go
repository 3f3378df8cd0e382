package history

import (
	"testing"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func full(x int64) map[types.EntityID]types.Payload {
	return map[types.EntityID]types.Payload{
		"e1": {"x": types.IntValue(x)},
	}
}

func TestBuffer_RestoreExactTick(t *testing.T) {
	b := New(60)
	b.Snapshot(1, full(1))
	b.Snapshot(2, full(2))
	b.Snapshot(3, full(3))

	state, err := b.Restore(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := state["e1"].Int64
	if got != 2 {
		t.Errorf("expected x=2 at tick 2, got %d", got)
	}
}

func TestBuffer_RestoreBeyondWindowReturnsHistoryExpired(t *testing.T) {
	b := New(3)
	for tick := types.Tick(1); tick <= 10; tick++ {
		b.Snapshot(tick, full(int64(tick)))
	}

	_, err := b.Restore(1)
	if err == nil {
		t.Fatal("expected HistoryExpired error")
	}
	if _, ok := err.(*types.HistoryExpiredError); !ok {
		t.Fatalf("expected *types.HistoryExpiredError, got %T", err)
	}
}

func TestBuffer_RestoreWithinRetainedWindow(t *testing.T) {
	b := New(3)
	for tick := types.Tick(1); tick <= 10; tick++ {
		b.Snapshot(tick, full(int64(tick)))
	}

	oldest := b.OldestTick()
	state, err := b.Restore(oldest)
	if err != nil {
		t.Fatalf("unexpected error restoring oldest retained tick: %v", err)
	}
	if state["e1"].Int64 != int64(oldest) {
		t.Errorf("expected x=%d, got %d", oldest, state["e1"].Int64)
	}
}

func TestBuffer_SnapshotOnlyRecordsChangedEntities(t *testing.T) {
	b := New(60)
	b.Snapshot(1, map[types.EntityID]types.Payload{
		"e1": {"x": types.IntValue(1)},
		"e2": {"x": types.IntValue(100)},
	})
	// e2 unchanged at tick 2; only e1 moves.
	b.Snapshot(2, map[types.EntityID]types.Payload{
		"e1": {"x": types.IntValue(2)},
		"e2": {"x": types.IntValue(100)},
	})

	if len(b.deltas[1].changed) != 1 {
		t.Fatalf("expected only 1 changed entity at tick 2, got %d", len(b.deltas[1].changed))
	}

	state, err := b.Restore(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state["e2"].Int64 != 100 {
		t.Errorf("expected unchanged e2 to materialize at 100, got %d", state["e2"].Int64)
	}
}

func TestBuffer_EvictionAdvancesBase(t *testing.T) {
	b := New(2)
	b.Snapshot(1, full(1))
	b.Snapshot(2, full(2))
	b.Snapshot(3, full(3))

	if b.Len() != 2 {
		t.Fatalf("expected 2 retained frames, got %d", b.Len())
	}
	if b.OldestTick() != 2 {
		t.Fatalf("expected oldest tick 2, got %d", b.OldestTick())
	}
}
