package pipeline

import "github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"

// ResolvePriority applies the spec.md §4.5 upgrade rule: a state_update
// for a locked entity, or one whose version jumps by more than one
// since the baseline the receiver is known to hold, is upgraded to
// PriorityHigh regardless of its default priority. Always-critical
// types (join/leave/snapshot/lock_response/conflict) are handled
// separately by OutboundQueue.Enqueue.
func ResolvePriority(msg types.Message, locked bool, baseline uint64) types.Priority {
	if msg.Type == types.StateUpdate && (locked || msg.Version > baseline+1) {
		if msg.Priority > types.PriorityHigh {
			return types.PriorityHigh
		}
	}
	return msg.Priority
}
