package types

// ConflictPolicy selects how concurrent writes to the same entity are
// resolved. Selectable per entity or globally (Config.PerEntityPolicyOverrides
// / Config.DefaultConflictPolicy).
type ConflictPolicy uint8

const (
	PolicyLastWriteWins ConflictPolicy = iota
	PolicyHostAuthority
	PolicyMerge
	PolicyRollback
	PolicyVote
)

func (p ConflictPolicy) String() string {
	switch p {
	case PolicyLastWriteWins:
		return "last_write_wins"
	case PolicyHostAuthority:
		return "host_authority"
	case PolicyMerge:
		return "merge"
	case PolicyRollback:
		return "rollback"
	case PolicyVote:
		return "vote"
	default:
		return "unknown"
	}
}

// MergeRule is the per-field combination rule for PolicyMerge.
type MergeRule uint8

const (
	TakeLatest MergeRule = iota
	TakeMin
	TakeMax
	Interpolate
)

// MergeFieldRule pairs a rule with its parameter (only meaningful for
// Interpolate, where Alpha in [0,1] weights the newer candidate).
type MergeFieldRule struct {
	Rule  MergeRule
	Alpha float64
}

// Candidate is one of the competing writes a conflict must choose
// between.
type Candidate struct {
	Origin  PeerID
	Tick    Tick
	Version uint64
	// Sequence is the origin's per-origin monotonic sequence number,
	// used as the last_write_wins tiebreak ahead of origin lexical
	// order.
	Sequence uint64
	Payload  Payload
}

// ConflictReport is the output of a conflict resolution pass for a
// single entity.
type ConflictReport struct {
	EntityID    EntityID
	Candidates  []Candidate
	Winner      PeerID
	Resolved    Payload
	AppliedTick Tick
	Policy      ConflictPolicy
}
