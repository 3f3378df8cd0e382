package pipeline

import (
	"sort"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

type ackEntry struct {
	msg      types.Message
	deadline types.Tick
}

// AckTable tracks every in-flight message requiring acknowledgment,
// retransmitting on a tick deadline up to a maximum retry count before
// surfacing MessageTimeout, per spec.md §4.5. Acks themselves never
// require acks and are never placed in the table.
type AckTable struct {
	retryTicks types.Tick
	maxRetries int
	pending    map[types.UID]*ackEntry
}

func NewAckTable(retryTicks types.Tick, maxRetries int) *AckTable {
	return &AckTable{
		retryTicks: retryTicks,
		maxRetries: maxRetries,
		pending:    make(map[types.UID]*ackEntry),
	}
}

// Track registers msg as awaiting an ack, keyed by message id, with a
// retransmit deadline of firstSentTick + retry_ticks.
func (t *AckTable) Track(msg types.Message, firstSentTick types.Tick) {
	if !msg.RequiresAck || msg.Type == types.Ack {
		return
	}
	msg.FirstSentTick = firstSentTick
	t.pending[msg.ID] = &ackEntry{msg: msg, deadline: firstSentTick + t.retryTicks}
}

// Acknowledge removes id from the table, confirming its delivery. It
// reports the retry count the message carried at the time of ack,
// matching spec.md §8's "retry count at time of ack is ≤ max_retries"
// invariant.
func (t *AckTable) Acknowledge(id types.UID) (retryCount int, ok bool) {
	entry, found := t.pending[id]
	if !found {
		return 0, false
	}
	delete(t.pending, id)
	return entry.msg.RetryCount, true
}

// Sweep is called once per tick. It returns the messages whose
// deadline has passed and should be retransmitted (with RetryCount
// incremented and a fresh deadline), plus the ids of messages that
// exhausted max_retries and are dropped — callers surface a
// MessageTimeout event for each dropped id.
func (t *AckTable) Sweep(currentTick types.Tick) (retransmit []types.Message, timedOut []types.UID) {
	var ids []types.UID
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		entry := t.pending[id]
		if currentTick < entry.deadline {
			continue
		}
		if entry.msg.RetryCount >= t.maxRetries {
			delete(t.pending, id)
			timedOut = append(timedOut, id)
			continue
		}
		entry.msg.RetryCount++
		if entry.msg.RetryCount >= t.maxRetries {
			// This was the last permitted retry: don't schedule a
			// fourth attempt's deadline a full retry_ticks out. Set the
			// deadline to now so the very next sweep times the message
			// out instead of retransmitting again.
			entry.deadline = currentTick
		} else {
			entry.deadline = currentTick + t.retryTicks
		}
		retransmit = append(retransmit, entry.msg)
	}
	return retransmit, timedOut
}

// Len returns the number of messages currently awaiting an ack.
func (t *AckTable) Len() int { return len(t.pending) }
