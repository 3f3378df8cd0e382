package pipeline

import (
	"testing"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func TestAckTable_AcknowledgeRemovesEntry(t *testing.T) {
	table := NewAckTable(15, 3)
	table.Track(types.Message{ID: "m1", RequiresAck: true}, 1)

	if table.Len() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", table.Len())
	}
	retryCount, ok := table.Acknowledge("m1")
	if !ok {
		t.Fatal("expected ack to find the entry")
	}
	if retryCount != 0 {
		t.Errorf("expected retry count 0, got %d", retryCount)
	}
	if table.Len() != 0 {
		t.Fatalf("expected entry removed after ack")
	}
}

func TestAckTable_SweepRetransmitsPastDeadline(t *testing.T) {
	table := NewAckTable(15, 3)
	table.Track(types.Message{ID: "m1", RequiresAck: true}, 1)

	retransmit, timedOut := table.Sweep(10)
	if len(retransmit) != 0 || len(timedOut) != 0 {
		t.Fatalf("expected no action before deadline, got retransmit=%v timedOut=%v", retransmit, timedOut)
	}

	retransmit, timedOut = table.Sweep(16)
	if len(retransmit) != 1 || len(timedOut) != 0 {
		t.Fatalf("expected one retransmit at deadline, got retransmit=%v timedOut=%v", retransmit, timedOut)
	}
	if retransmit[0].RetryCount != 1 {
		t.Errorf("expected retry count bumped to 1, got %d", retransmit[0].RetryCount)
	}
}

func TestAckTable_ExhaustsRetriesThenTimesOut(t *testing.T) {
	table := NewAckTable(15, 3)
	table.Track(types.Message{ID: "m1", RequiresAck: true}, 1)

	tick := types.Tick(1)
	for i := 0; i < 3; i++ {
		tick += 15
		retransmit, timedOut := table.Sweep(tick)
		if len(retransmit) != 1 || len(timedOut) != 0 {
			t.Fatalf("retry %d: expected one retransmit, got retransmit=%v timedOut=%v", i, retransmit, timedOut)
		}
	}

	// The 3rd retransmit above already used the last permitted retry;
	// the very next sweep should time the message out rather than
	// waiting a full retry_ticks window for a fourth attempt.
	tick++
	retransmit, timedOut := table.Sweep(tick)
	if len(retransmit) != 0 || len(timedOut) != 1 || timedOut[0] != "m1" {
		t.Fatalf("expected message to time out right after exhausting retries, got retransmit=%v timedOut=%v", retransmit, timedOut)
	}
	if table.Len() != 0 {
		t.Fatalf("expected timed-out entry removed from table")
	}
}

func TestAckTable_IgnoresMessagesNotRequiringAck(t *testing.T) {
	table := NewAckTable(15, 3)
	table.Track(types.Message{ID: "m1", RequiresAck: false}, 1)
	table.Track(types.Message{ID: "m2", Type: types.Ack, RequiresAck: true}, 1)

	if table.Len() != 0 {
		t.Fatalf("expected neither message tracked, got %d", table.Len())
	}
}
