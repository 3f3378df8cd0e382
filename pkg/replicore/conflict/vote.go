package conflict

import (
	"crypto/sha256"
	"sort"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/codec"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// quorumFor is the default quorum: floor(n/2)+1 of active voters, a
// strict majority (2 of 3, 3 of 4).
func quorumFor(activeVoters int) int {
	return activeVoters/2 + 1
}

type tally struct {
	hash       [sha256.Size]byte
	count      int
	candidates []types.Candidate
}

// vote hashes each candidate's payload deterministically (canonical
// encoding, spec.md §6), tallies counts per hash, and requires a
// majority of activeVoters to win; ties resolve by last_write_wins.
// Below quorum the policy degrades to host_authority, surfacing
// QuorumFailedError.
func (r *Resolver) vote(entity types.EntityID, candidates []types.Candidate, activeVoters int) (types.ConflictReport, error) {
	needed := quorumFor(activeVoters)

	tallies := make(map[[sha256.Size]byte]*tally)
	var order [][sha256.Size]byte
	for _, c := range candidates {
		encoded, err := codec.EncodePayload(nil, c.Payload)
		if err != nil {
			continue
		}
		h := sha256.Sum256(encoded)
		t, ok := tallies[h]
		if !ok {
			t = &tally{hash: h}
			tallies[h] = t
			order = append(order, h)
		}
		t.count++
		t.candidates = append(t.candidates, c)
	}

	var winner *tally
	for _, h := range order {
		t := tallies[h]
		if winner == nil || t.count > winner.count {
			winner = t
		}
	}

	if winner == nil || winner.count < needed {
		report := r.hostAuthority(entity, candidates)
		return report, &types.QuorumFailedError{EntityID: entity, Needed: needed, Got: tallyOf(winner)}
	}

	// Tie detection: any other hash with the same count as the winner
	// means the vote didn't produce a clean majority; resolve by
	// last_write_wins among the tied candidates' union.
	tiedCount := 0
	for _, h := range order {
		if tallies[h].count == winner.count {
			tiedCount++
		}
	}
	if tiedCount > 1 {
		var tied []types.Candidate
		for _, h := range order {
			if tallies[h].count == winner.count {
				tied = append(tied, tallies[h].candidates...)
			}
		}
		sort.Slice(tied, func(i, j int) bool { return tied[i].Origin < tied[j].Origin })
		report := r.lastWriteWins(entity, tied)
		report.Policy = types.PolicyVote
		return report, nil
	}

	lowestOrigin := winner.candidates[0]
	for _, c := range winner.candidates[1:] {
		if c.Origin < lowestOrigin.Origin {
			lowestOrigin = c
		}
	}

	return types.ConflictReport{
		EntityID:    entity,
		Candidates:  candidates,
		Winner:      lowestOrigin.Origin,
		Resolved:    lowestOrigin.Payload,
		AppliedTick: lowestOrigin.Tick,
		Policy:      types.PolicyVote,
	}, nil
}

func tallyOf(t *tally) int {
	if t == nil {
		return 0
	}
	return t.count
}
