package codec

import "github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"

// Diff returns only the fields of next that differ from baseline (added,
// changed, or removed — removals are marked with an explicit null
// value so the receiver can distinguish "unchanged" from "cleared").
// Applying the result to baseline via Apply reproduces next exactly,
// except that a field whose value in next is itself null is dropped
// rather than kept.
func Diff(baseline, next types.Payload) types.Payload {
	delta := make(types.Payload)
	for _, field := range next.SortedFields() {
		nv := next[field]
		if bv, ok := baseline[field]; !ok || !bv.Equal(nv) {
			delta[field] = nv
		}
	}
	for field := range baseline {
		if _, ok := next[field]; !ok {
			delta[field] = types.NullValue()
		}
	}
	return delta
}

// Apply reproduces the post-write payload by merging delta onto
// baseline: fields in delta overwrite baseline, and a null-valued delta
// field removes the corresponding baseline field.
func Apply(baseline, delta types.Payload) types.Payload {
	out := baseline.Clone()
	if out == nil {
		out = make(types.Payload)
	}
	for field, v := range delta {
		if v.Kind == types.KindNull {
			delete(out, field)
			continue
		}
		out[field] = v.Clone()
	}
	return out
}
