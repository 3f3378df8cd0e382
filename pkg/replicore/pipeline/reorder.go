package pipeline

import (
	"sort"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// originState tracks per-origin sequencing for the reorder window.
type originState struct {
	next    uint64 // sequence expected next
	pending map[uint64]types.Message
}

// Reorderer validates inbound frames and reorders out-of-order
// arrivals within a bounded window per spec.md §4.5. Frames with a
// sequence number below the next expected sequence are discarded as
// stale; frames more than window ahead of it are discarded rather than
// buffered without bound.
type Reorderer struct {
	window  int
	origins map[types.PeerID]*originState
}

func NewReorderer(window int) *Reorderer {
	if window <= 0 {
		window = 32
	}
	return &Reorderer{window: window, origins: make(map[types.PeerID]*originState)}
}

// Accept validates msg (non-empty id, non-empty origin) then feeds it
// through the per-origin reorder window. It returns the set of
// messages now deliverable in sequence order (empty if msg arrived
// early and is buffered pending earlier sequences; more than one if
// msg fills a gap that unblocks buffered successors), or a
// ProtocolViolationError if msg fails validation.
func (r *Reorderer) Accept(msg types.Message) ([]types.Message, error) {
	if msg.ID == "" {
		return nil, &types.ProtocolViolationError{Peer: msg.Origin, Detail: "missing message id"}
	}
	if msg.Origin == "" {
		return nil, &types.ProtocolViolationError{Peer: msg.Origin, Detail: "missing origin"}
	}

	state, ok := r.origins[msg.Origin]
	if !ok {
		state = &originState{next: msg.Sequence, pending: make(map[uint64]types.Message)}
		r.origins[msg.Origin] = state
	}

	if msg.Sequence < state.next {
		// Stale: either already delivered or too far behind the
		// window to matter. Silently discarded per spec.md §4.5.
		return nil, nil
	}
	if msg.Sequence > state.next+uint64(r.window) {
		// Too far ahead to buffer without unbounded growth; discard.
		return nil, nil
	}

	if msg.Sequence == state.next {
		delivered := []types.Message{msg}
		state.next++
		for {
			next, ok := state.pending[state.next]
			if !ok {
				break
			}
			delete(state.pending, state.next)
			delivered = append(delivered, next)
			state.next++
		}
		return delivered, nil
	}

	state.pending[msg.Sequence] = msg
	return nil, nil
}

// PendingSequences returns the buffered-ahead sequence numbers for
// origin, sorted, for diagnostics and tests.
func (r *Reorderer) PendingSequences(origin types.PeerID) []uint64 {
	state, ok := r.origins[origin]
	if !ok {
		return nil
	}
	seqs := make([]uint64, 0, len(state.pending))
	for seq := range state.pending {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs
}
