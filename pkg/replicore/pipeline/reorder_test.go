package pipeline

import (
	"testing"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func msg(id types.UID, origin types.PeerID, seq uint64) types.Message {
	return types.Message{ID: id, Origin: origin, Sequence: seq, Type: types.StateUpdate}
}

func TestReorderer_InOrderDeliversImmediately(t *testing.T) {
	r := NewReorderer(32)
	delivered, err := r.Accept(msg("a", "peerA", 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 1 || delivered[0].ID != "a" {
		t.Fatalf("expected immediate delivery, got %v", delivered)
	}
}

func TestReorderer_OutOfOrderBuffersThenFlushes(t *testing.T) {
	r := NewReorderer(32)
	r.Accept(msg("seq0", "peerA", 0))

	// seq2 arrives before seq1: buffered, nothing delivered yet.
	delivered, err := r.Accept(msg("seq2", "peerA", 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("expected no delivery while gap open, got %v", delivered)
	}

	// seq1 fills the gap, unblocking seq1 and seq2 together.
	delivered, err = r.Accept(msg("seq1", "peerA", 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 2 || delivered[0].ID != "seq1" || delivered[1].ID != "seq2" {
		t.Fatalf("expected [seq1, seq2] delivered in order, got %v", delivered)
	}
}

func TestReorderer_StaleSequenceDiscarded(t *testing.T) {
	r := NewReorderer(32)
	r.Accept(msg("seq0", "peerA", 0))
	r.Accept(msg("seq1", "peerA", 1))

	delivered, err := r.Accept(msg("replay0", "peerA", 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("expected stale replay discarded, got %v", delivered)
	}
}

func TestReorderer_BeyondWindowDiscarded(t *testing.T) {
	r := NewReorderer(4)
	r.Accept(msg("seq0", "peerA", 0))

	delivered, err := r.Accept(msg("farahead", "peerA", 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("expected far-ahead frame discarded, got %v", delivered)
	}
	if len(r.PendingSequences("peerA")) != 0 {
		t.Fatalf("expected nothing buffered for a discarded far-ahead frame")
	}
}

func TestReorderer_RejectsMissingOrigin(t *testing.T) {
	r := NewReorderer(32)
	_, err := r.Accept(types.Message{ID: "a", Sequence: 0})
	if err == nil {
		t.Fatal("expected ProtocolViolationError for missing origin")
	}
	if _, ok := err.(*types.ProtocolViolationError); !ok {
		t.Fatalf("expected *types.ProtocolViolationError, got %T", err)
	}
}
