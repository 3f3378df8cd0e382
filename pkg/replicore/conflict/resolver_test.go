package conflict

import (
	"testing"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func hp(n int64) types.Payload { return types.Payload{"hp": types.IntValue(n)} }

func TestResolver_LastWriteWinsFavorsOriginTiebreak(t *testing.T) {
	r := NewResolver("host", nil)
	candidates := []types.Candidate{
		{Origin: "host", Tick: 10, Sequence: 1, Payload: hp(90)},
		{Origin: "client", Tick: 10, Sequence: 1, Payload: hp(80)},
	}

	report, err := r.Resolve(types.PolicyLastWriteWins, "e1", candidates, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Winner != "host" {
		t.Fatalf("expected host to win tiebreak, got %s", report.Winner)
	}
	if report.Resolved["hp"].Int64 != 90 {
		t.Errorf("expected resolved hp=90, got %v", report.Resolved["hp"])
	}
}

func TestResolver_HostAuthorityPrefersHostCandidate(t *testing.T) {
	r := NewResolver("host", nil)
	candidates := []types.Candidate{
		{Origin: "client", Tick: 20, Sequence: 5, Payload: hp(50)},
		{Origin: "host", Tick: 10, Sequence: 1, Payload: hp(90)},
	}

	report, err := r.Resolve(types.PolicyHostAuthority, "e1", candidates, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Winner != "host" {
		t.Fatalf("expected host to win regardless of tick order, got %s", report.Winner)
	}
}

func TestResolver_HostAuthorityFallsBackToLastWriteWins(t *testing.T) {
	r := NewResolver("host", nil)
	candidates := []types.Candidate{
		{Origin: "clientA", Tick: 5, Sequence: 1, Payload: hp(10)},
		{Origin: "clientB", Tick: 10, Sequence: 1, Payload: hp(20)},
	}

	report, _ := r.Resolve(types.PolicyHostAuthority, "e1", candidates, 0, nil)
	if report.Winner != "clientB" {
		t.Fatalf("expected newest client candidate to win in host's absence, got %s", report.Winner)
	}
}

func TestResolver_MergeTakesMinMaxAndLatest(t *testing.T) {
	rules := map[string]types.MergeFieldRule{
		"score": {Rule: types.TakeMax},
		"ammo":  {Rule: types.TakeMin},
	}
	r := NewResolver("host", rules)
	candidates := []types.Candidate{
		{Origin: "a", Tick: 1, Sequence: 1, Payload: types.Payload{
			"score": types.IntValue(10), "ammo": types.IntValue(5), "name": types.StringValue("a"),
		}},
		{Origin: "b", Tick: 2, Sequence: 1, Payload: types.Payload{
			"score": types.IntValue(30), "ammo": types.IntValue(2), "name": types.StringValue("b"),
		}},
	}

	report, err := r.Resolve(types.PolicyMerge, "e1", candidates, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Resolved["score"].Int64 != 30 {
		t.Errorf("expected take_max score=30, got %v", report.Resolved["score"])
	}
	if report.Resolved["ammo"].Int64 != 2 {
		t.Errorf("expected take_min ammo=2, got %v", report.Resolved["ammo"])
	}
	if report.Resolved["name"].Str != "b" {
		t.Errorf("expected take_latest (default) name=b, got %v", report.Resolved["name"])
	}
}

func TestResolver_MergeInterpolatesBetweenLastTwoCandidates(t *testing.T) {
	rules := map[string]types.MergeFieldRule{"x": {Rule: types.Interpolate, Alpha: 0.5}}
	r := NewResolver("host", rules)
	candidates := []types.Candidate{
		{Origin: "a", Tick: 1, Sequence: 1, Payload: types.Payload{"x": types.FloatValue(0)}},
		{Origin: "b", Tick: 2, Sequence: 1, Payload: types.Payload{"x": types.FloatValue(10)}},
	}

	report, _ := r.Resolve(types.PolicyMerge, "e1", candidates, 0, nil)
	if report.Resolved["x"].Float != 5 {
		t.Errorf("expected interpolated x=5, got %v", report.Resolved["x"])
	}
}

func TestResolver_RollbackAppliesLowestCandidate(t *testing.T) {
	r := NewResolver("host", nil)
	candidates := []types.Candidate{
		{Origin: "host", Tick: 102, Sequence: 1, Payload: hp(1)},
		{Origin: "client", Tick: 100, Sequence: 1, Payload: hp(2)},
	}

	report, err := r.Resolve(types.PolicyRollback, "e1", candidates, 0, func(types.Tick) bool { return true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.AppliedTick != 100 || report.Winner != "client" {
		t.Fatalf("expected rollback to the lowest-tick candidate (client@100), got %s@%d", report.Winner, report.AppliedTick)
	}
}

func TestResolver_RollbackDegradesOnHistoryExpired(t *testing.T) {
	r := NewResolver("host", nil)
	candidates := []types.Candidate{
		{Origin: "host", Tick: 102, Sequence: 1, Payload: hp(1)},
		{Origin: "client", Tick: 100, Sequence: 1, Payload: hp(2)},
	}

	report, err := r.Resolve(types.PolicyRollback, "e1", candidates, 0, func(types.Tick) bool { return false })
	if err == nil {
		t.Fatal("expected HistoryExpiredError")
	}
	if _, ok := err.(*types.HistoryExpiredError); !ok {
		t.Fatalf("expected *types.HistoryExpiredError, got %T", err)
	}
	if report.Policy != types.PolicyHostAuthority {
		t.Fatalf("expected degraded policy host_authority, got %v", report.Policy)
	}
}

func TestResolver_VoteMajorityWins(t *testing.T) {
	r := NewResolver("host", nil)
	candidates := []types.Candidate{
		{Origin: "p1", Tick: 1, Sequence: 1, Payload: hp(5)},
		{Origin: "p2", Tick: 1, Sequence: 1, Payload: hp(5)},
		{Origin: "p3", Tick: 1, Sequence: 1, Payload: hp(9)},
	}

	report, err := r.Resolve(types.PolicyVote, "e1", candidates, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Resolved["hp"].Int64 != 5 {
		t.Fatalf("expected hash-majority hp=5, got %v", report.Resolved["hp"])
	}
}

func TestResolver_VoteBelowQuorumDegradesToHostAuthority(t *testing.T) {
	r := NewResolver("host", nil)
	candidates := []types.Candidate{
		{Origin: "p1", Tick: 1, Sequence: 1, Payload: hp(5)},
		{Origin: "p2", Tick: 1, Sequence: 1, Payload: hp(9)},
		{Origin: "p3", Tick: 1, Sequence: 1, Payload: hp(20)},
	}

	report, err := r.Resolve(types.PolicyVote, "e1", candidates, 3, nil)
	if err == nil {
		t.Fatal("expected QuorumFailedError when no hash reaches quorum")
	}
	if _, ok := err.(*types.QuorumFailedError); !ok {
		t.Fatalf("expected *types.QuorumFailedError, got %T", err)
	}
	if report.Policy != types.PolicyHostAuthority {
		t.Fatalf("expected degraded policy host_authority, got %v", report.Policy)
	}
}
