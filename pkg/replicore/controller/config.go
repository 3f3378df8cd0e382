package controller

import (
	"time"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// Config enumerates every tunable named in spec.md §6. It replaces the
// teacher's BaseConfiguration/ClusterConfiguration split with a single
// struct, per SPEC_FULL.md's ambient-stack expansion.
type Config struct {
	TickRateHz                int
	HeartbeatInterval         time.Duration
	TimeoutThreshold          time.Duration
	MaxPeers                  int
	RollbackWindowTicks       int
	ReorderWindow             int
	RetryTicks                types.Tick
	MaxRetries                int
	CompressionThresholdBytes int
	DefaultConflictPolicy     types.ConflictPolicy
	PerEntityPolicyOverrides  map[types.EntityID]types.ConflictPolicy
	MergeRules                map[string]types.MergeFieldRule
	// PredictionTolerance is the per-field numeric tolerance under which
	// a prediction is considered reconciled without a diff (spec.md §4.6
	// step 4).
	PredictionTolerance float64
	// LockTTLTicks is the default TTL granted to a confirmed lock.
	LockTTLTicks types.Tick
	// ProtocolVersion is exchanged during the join handshake; a peer
	// whose major version (parsed with go-version) differs from this
	// one is rejected.
	ProtocolVersion string
}

// DefaultConfig returns every default named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		TickRateHz:                60,
		HeartbeatInterval:         time.Second,
		TimeoutThreshold:          10 * time.Second,
		MaxPeers:                  64,
		RollbackWindowTicks:       60,
		ReorderWindow:             32,
		RetryTicks:                15,
		MaxRetries:                3,
		CompressionThresholdBytes: 100,
		DefaultConflictPolicy:     types.PolicyHostAuthority,
		PerEntityPolicyOverrides:  make(map[types.EntityID]types.ConflictPolicy),
		MergeRules:                make(map[string]types.MergeFieldRule),
		PredictionTolerance:       0.01,
		LockTTLTicks:              30,
		ProtocolVersion:           "1.0.0",
	}
}

// PolicyFor returns the conflict policy for entity, honoring the
// per-entity override table before falling back to the default.
func (c Config) PolicyFor(entity types.EntityID) types.ConflictPolicy {
	if policy, ok := c.PerEntityPolicyOverrides[entity]; ok {
		return policy
	}
	return c.DefaultConflictPolicy
}
