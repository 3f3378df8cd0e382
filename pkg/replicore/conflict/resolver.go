// Package conflict implements the five conflict-resolution policies
// from spec.md §4.6: last_write_wins, host_authority, merge, rollback,
// and vote. Grounded on the teacher's processCompute/processGather
// timestamp resolution and unityQuorum counting
// (pkg/mcast/protocol.go), generalized from one total-order protocol
// into five independently selectable policies.
package conflict

import (
	"sort"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// RollbackChecker reports whether tick is still within the History
// Buffer's retained window, letting the rollback policy decide whether
// to degrade to host_authority without importing the history package
// directly (conflict resolution stays pure, the Controller owns
// History Buffer access).
type RollbackChecker func(tick types.Tick) bool

// Resolver applies conflict policies given the authoritative peer id
// (for host_authority and its degradation targets) and the merge rule
// table (for policy merge), both replicated as join-handshake
// configuration per spec.md §4.6.
type Resolver struct {
	hostID     types.PeerID
	mergeRules map[string]types.MergeFieldRule
}

func NewResolver(hostID types.PeerID, mergeRules map[string]types.MergeFieldRule) *Resolver {
	if mergeRules == nil {
		mergeRules = make(map[string]types.MergeFieldRule)
	}
	return &Resolver{hostID: hostID, mergeRules: mergeRules}
}

// Resolve dispatches to the configured policy, returning a
// ConflictReport naming the winner and resolved payload. activeVoters
// is only consulted by PolicyVote; canRollback is only consulted by
// PolicyRollback (may be nil for the other policies).
func (r *Resolver) Resolve(policy types.ConflictPolicy, entity types.EntityID, candidates []types.Candidate, activeVoters int, canRollback RollbackChecker) (types.ConflictReport, error) {
	if len(candidates) == 0 {
		return types.ConflictReport{}, nil
	}

	switch policy {
	case types.PolicyLastWriteWins:
		return r.lastWriteWins(entity, candidates), nil
	case types.PolicyHostAuthority:
		return r.hostAuthority(entity, candidates), nil
	case types.PolicyMerge:
		return r.merge(entity, candidates), nil
	case types.PolicyRollback:
		return r.rollback(entity, candidates, canRollback)
	case types.PolicyVote:
		return r.vote(entity, candidates, activeVoters)
	default:
		return r.lastWriteWins(entity, candidates), nil
	}
}

// winnerByOrder picks the candidate with the greatest (tick, sequence,
// origin) tuple, origin ids compared lexically as the final tiebreak,
// so "host" beats "client" at an equal tick and sequence (spec.md §8
// scenario 1). last_write_wins and the fallback paths of
// host_authority and rollback all route through this.
func winnerByOrder(candidates []types.Candidate) types.Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if isGreater(c, best) {
			best = c
		}
	}
	return best
}

func isGreater(a, b types.Candidate) bool {
	if a.Tick != b.Tick {
		return a.Tick > b.Tick
	}
	if a.Sequence != b.Sequence {
		return a.Sequence > b.Sequence
	}
	return a.Origin > b.Origin
}

// lowestByOrder picks the candidate with the smallest (tick, sequence),
// used by the rollback policy per spec.md §4.6.
func lowestByOrder(candidates []types.Candidate) types.Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Tick < best.Tick || (c.Tick == best.Tick && c.Sequence < best.Sequence) {
			best = c
		}
	}
	return best
}

func (r *Resolver) lastWriteWins(entity types.EntityID, candidates []types.Candidate) types.ConflictReport {
	winner := winnerByOrder(candidates)
	return types.ConflictReport{
		EntityID:    entity,
		Candidates:  candidates,
		Winner:      winner.Origin,
		Resolved:    winner.Payload,
		AppliedTick: winner.Tick,
		Policy:      types.PolicyLastWriteWins,
	}
}

func (r *Resolver) hostAuthority(entity types.EntityID, candidates []types.Candidate) types.ConflictReport {
	for _, c := range candidates {
		if c.Origin == r.hostID {
			return types.ConflictReport{
				EntityID:    entity,
				Candidates:  candidates,
				Winner:      c.Origin,
				Resolved:    c.Payload,
				AppliedTick: c.Tick,
				Policy:      types.PolicyHostAuthority,
			}
		}
	}
	report := r.lastWriteWins(entity, candidates)
	report.Policy = types.PolicyHostAuthority
	return report
}

func (r *Resolver) merge(entity types.EntityID, candidates []types.Candidate) types.ConflictReport {
	ordered := append([]types.Candidate(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool { return isGreater(ordered[j], ordered[i]) })

	fields := make(map[string]struct{})
	for _, c := range ordered {
		for name := range c.Payload {
			fields[name] = struct{}{}
		}
	}

	resolved := make(types.Payload, len(fields))
	for name := range fields {
		resolved[name] = r.mergeField(name, ordered)
	}

	newest := ordered[len(ordered)-1]
	return types.ConflictReport{
		EntityID:    entity,
		Candidates:  candidates,
		Winner:      newest.Origin,
		Resolved:    resolved,
		AppliedTick: newest.Tick,
		Policy:      types.PolicyMerge,
	}
}

// mergeField applies the configured rule for name across candidates,
// given in ascending (tick, sequence) order. Unlisted fields default
// to take_latest.
func (r *Resolver) mergeField(name string, ascending []types.Candidate) types.Value {
	rule, ok := r.mergeRules[name]
	if !ok {
		rule = types.MergeFieldRule{Rule: types.TakeLatest}
	}

	var values []types.Value
	for _, c := range ascending {
		if v, present := c.Payload[name]; present {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return types.NullValue()
	}

	switch rule.Rule {
	case types.TakeMin:
		best := values[0]
		for _, v := range values[1:] {
			if lessNumeric(v, best) {
				best = v
			}
		}
		return best
	case types.TakeMax:
		best := values[0]
		for _, v := range values[1:] {
			if lessNumeric(best, v) {
				best = v
			}
		}
		return best
	case types.Interpolate:
		if len(values) == 1 {
			return values[0]
		}
		prev := values[len(values)-2]
		latest := values[len(values)-1]
		prevF, ok1 := prev.AsFloat64()
		latestF, ok2 := latest.AsFloat64()
		if !ok1 || !ok2 {
			return latest
		}
		alpha := rule.Alpha
		return types.FloatValue(prevF + alpha*(latestF-prevF))
	case types.TakeLatest:
		fallthrough
	default:
		return values[len(values)-1]
	}
}

func lessNumeric(a, b types.Value) bool {
	af, aok := a.AsFloat64()
	bf, bok := b.AsFloat64()
	if aok && bok {
		return af < bf
	}
	return false
}

// rollback applies the candidate with the lowest (tick, sequence);
// the Controller is responsible for performing the actual History
// Buffer restore and replay once this returns. If canRollback reports
// the conflict tick has expired from the window, the policy degrades
// to host_authority per spec.md §4.6.
func (r *Resolver) rollback(entity types.EntityID, candidates []types.Candidate, canRollback RollbackChecker) (types.ConflictReport, error) {
	target := lowestByOrder(candidates)
	if canRollback != nil && !canRollback(target.Tick) {
		report := r.hostAuthority(entity, candidates)
		return report, &types.HistoryExpiredError{RequestedTick: target.Tick}
	}
	return types.ConflictReport{
		EntityID:    entity,
		Candidates:  candidates,
		Winner:      target.Origin,
		Resolved:    target.Payload,
		AppliedTick: target.Tick,
		Policy:      types.PolicyRollback,
	}, nil
}
