package prediction

import (
	"testing"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func posPayload(x int64) types.Payload { return types.Payload{"x": types.IntValue(x)} }

func TestTracker_ReconcileMatchWithinToleranceDropsSilently(t *testing.T) {
	tr := NewTracker()
	tr.Record("client", "e1", types.PredictionInput{
		InputID: "in1", PredictedPayload: posPayload(12), OriginatingTick: 50,
	})

	diff := tr.Reconcile("client", "e1", 53, posPayload(12), 0.01)
	if diff != nil {
		t.Fatalf("expected no diff for matching prediction, got %+v", diff)
	}
	if _, ok := tr.Pending("client", "e1"); ok {
		t.Fatal("expected consumed prediction to be cleared")
	}
}

func TestTracker_ReconcileMismatchEmitsDiff(t *testing.T) {
	tr := NewTracker()
	tr.Record("client", "e1", types.PredictionInput{
		InputID: "in1", PredictedPayload: posPayload(12), OriginatingTick: 50,
	})

	diff := tr.Reconcile("client", "e1", 53, posPayload(11), 0)
	if diff == nil {
		t.Fatal("expected a reconciliation diff")
	}
	if diff.Predicted["x"].Int64 != 12 || diff.Authoritative["x"].Int64 != 11 {
		t.Errorf("unexpected diff payloads: %+v", diff)
	}
}

func TestTracker_ReconcileLeavesLaterPredictionsPending(t *testing.T) {
	tr := NewTracker()
	tr.Record("client", "e1", types.PredictionInput{InputID: "in1", PredictedPayload: posPayload(1), OriginatingTick: 10})
	tr.Record("client", "e1", types.PredictionInput{InputID: "in2", PredictedPayload: posPayload(2), OriginatingTick: 60})

	tr.Reconcile("client", "e1", 10, posPayload(1), 0)

	record, ok := tr.Pending("client", "e1")
	if !ok {
		t.Fatal("expected the later, unconsumed prediction to remain pending")
	}
	if len(record.Inputs) != 1 || record.Inputs[0].InputID != "in2" {
		t.Fatalf("expected only in2 pending, got %+v", record.Inputs)
	}
}

func TestTracker_ExpireDiscardsOldPredictions(t *testing.T) {
	tr := NewTracker()
	tr.Record("client", "e1", types.PredictionInput{InputID: "in1", OriginatingTick: 5})
	tr.Record("client", "e1", types.PredictionInput{InputID: "in2", OriginatingTick: 90})

	discarded := tr.Expire("client", "e1", 60)
	if !discarded {
		t.Fatal("expected an old prediction to be discarded")
	}
	record, ok := tr.Pending("client", "e1")
	if !ok || len(record.Inputs) != 1 || record.Inputs[0].InputID != "in2" {
		t.Fatalf("expected only in2 to survive expiry, got %+v", record)
	}
}

func TestTracker_ForgetDropsAllOfPeer(t *testing.T) {
	tr := NewTracker()
	tr.Record("client", "e1", types.PredictionInput{InputID: "in1"})
	tr.Record("client", "e2", types.PredictionInput{InputID: "in2"})

	tr.Forget("client")

	if _, ok := tr.Pending("client", "e1"); ok {
		t.Error("expected e1 predictions forgotten")
	}
	if _, ok := tr.Pending("client", "e2"); ok {
		t.Error("expected e2 predictions forgotten")
	}
}
