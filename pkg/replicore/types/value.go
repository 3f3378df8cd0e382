// Package types defines the wire-level and domain types shared across
// every replicore component: the canonical tagged-value payload, entity
// records, peers, messages, predictions, and conflict reports.
package types

import (
	"fmt"
	"sort"
)

// Kind tags the concrete representation held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindList
	KindMap
)

// Value is the canonical tagged-value type carried in a Payload. Only one
// of the typed fields is meaningful, selected by Kind. Values are
// immutable once constructed; Clone produces an independent copy so a
// Payload can be embedded in a HistoryFrame snapshot without aliasing.
type Value struct {
	Kind   Kind
	Bool   bool
	Int64  int64
	Float  float64
	Str    string
	Bytes  []byte
	List   []Value
	Map    Payload
}

// Payload is a mapping from stable field name to tagged value. Field
// names are compared and ordered lexically wherever canonical output is
// required (codec encoding, conflict hashing, merge diffing).
type Payload map[string]Value

func NullValue() Value              { return Value{Kind: KindNull} }
func BoolValue(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value        { return Value{Kind: KindInt64, Int64: i} }
func FloatValue(f float64) Value    { return Value{Kind: KindFloat64, Float: f} }
func StringValue(s string) Value    { return Value{Kind: KindString, Str: s} }
func BytesValue(b []byte) Value     { return Value{Kind: KindBytes, Bytes: append([]byte(nil), b...)} }
func ListValue(vs ...Value) Value   { return Value{Kind: KindList, List: vs} }
func MapValue(p Payload) Value      { return Value{Kind: KindMap, Map: p} }

// Clone returns a deep, alias-free copy of v.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindBytes:
		return BytesValue(v.Bytes)
	case KindList:
		out := make([]Value, len(v.List))
		for i, e := range v.List {
			out[i] = e.Clone()
		}
		return Value{Kind: KindList, List: out}
	case KindMap:
		return Value{Kind: KindMap, Map: v.Map.Clone()}
	default:
		return v
	}
}

// Clone returns a deep, alias-free copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v.Clone()
	}
	return out
}

// SortedFields returns the payload's field names in lexical order, the
// order every canonical operation (encoding, hashing, delta diffing)
// must iterate in to be deterministic across peers.
func (p Payload) SortedFields() []string {
	fields := make([]string, 0, len(p))
	for k := range p {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Equal reports whether two values are structurally identical.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt64:
		return v.Int64 == other.Int64
	case KindFloat64:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindBytes:
		if len(v.Bytes) != len(other.Bytes) {
			return false
		}
		for i := range v.Bytes {
			if v.Bytes[i] != other.Bytes[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.Map.Equal(other.Map)
	default:
		return false
	}
}

// Equal reports whether two payloads hold the same fields and values.
func (p Payload) Equal(other Payload) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// AsFloat64 returns the value as a float64 for merge-rule arithmetic. It
// is only meaningful for KindInt64 and KindFloat64; ok is false
// otherwise.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt64:
		return float64(v.Int64), true
	case KindFloat64:
		return v.Float, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt64:
		return fmt.Sprintf("%d", v.Int64)
	case KindFloat64:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindBytes:
		return fmt.Sprintf("%x", v.Bytes)
	case KindList:
		return fmt.Sprintf("%v", v.List)
	case KindMap:
		return fmt.Sprintf("%v", map[string]Value(v.Map))
	default:
		return "<invalid>"
	}
}
