// Package pipeline implements the Message Pipeline (spec.md §4.5):
// inbound validation and reordering, an outbound priority queue, an
// ack/retry table, and per-(sender,receiver,entity) baseline tracking
// for delta encoding. Grounded on the teacher's rqueue/PreviousSet/Memo
// ordering machinery (pkg/mcast/core/peer.go), reimplemented concretely
// with container/heap since no third-party priority-queue library
// appears anywhere in the example pack.
package pipeline

import (
	"container/heap"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// outboundItem wraps a Message with the heap bookkeeping index.
type outboundItem struct {
	msg   types.Message
	seq   uint64 // insertion order, used as the priority tie-break
	index int
}

// outboundHeap orders by priority first (critical=0 sorts first),
// insertion order second, matching spec.md §4.5: "ties break on
// timestamp" — insertion order stands in for timestamp since items are
// enqueued in tick order.
type outboundHeap []*outboundItem

func (h outboundHeap) Len() int { return len(h) }
func (h outboundHeap) Less(i, j int) bool {
	if h[i].msg.Priority != h[j].msg.Priority {
		return h[i].msg.Priority < h[j].msg.Priority
	}
	return h[i].seq < h[j].seq
}
func (h outboundHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *outboundHeap) Push(x any) {
	item := x.(*outboundItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *outboundHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// OutboundQueue drains enqueued messages in strict priority order:
// critical > high > normal > low, ties broken by enqueue order.
type OutboundQueue struct {
	heap    outboundHeap
	nextSeq uint64
}

func NewOutboundQueue() *OutboundQueue {
	q := &OutboundQueue{}
	heap.Init(&q.heap)
	return q
}

// Enqueue applies the priority-upgrade rule from spec.md §4.5 before
// inserting: always-critical types are forced to PriorityCritical
// regardless of the caller-supplied priority.
func (q *OutboundQueue) Enqueue(msg types.Message) {
	if msg.Type.IsAlwaysCritical() {
		msg.Priority = types.PriorityCritical
	}
	q.nextSeq++
	heap.Push(&q.heap, &outboundItem{msg: msg, seq: q.nextSeq})
}

// Drain pops every queued message in priority order, emptying the
// queue.
func (q *OutboundQueue) Drain() []types.Message {
	out := make([]types.Message, 0, q.heap.Len())
	for q.heap.Len() > 0 {
		item := heap.Pop(&q.heap).(*outboundItem)
		out = append(out, item.msg)
	}
	return out
}

// Len reports the number of messages currently queued.
func (q *OutboundQueue) Len() int { return q.heap.Len() }
