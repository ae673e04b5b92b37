// Package models defines the core domain models for the scene-report workflow engine.
package models

import (
	"encoding/json"
	"fmt"
)

// ValueKind tags the concrete type carried by a Value.
type ValueKind string

const (
	KindString     ValueKind = "string"
	KindInt        ValueKind = "int"
	KindFloat      ValueKind = "float"
	KindStringList ValueKind = "string_list"
	KindMap        ValueKind = "map"
)

// Value is a tagged union for data flowing between workflow steps. Keeping the
// set of kinds closed makes step input/output contracts checkable instead of
// relying on whatever a step happened to stuff into an untyped map.
type Value struct {
	Kind ValueKind `json:"kind"`

	Str   string           `json:"str,omitempty"`
	Int   int64            `json:"int,omitempty"`
	Float float64          `json:"float,omitempty"`
	List  []string         `json:"list"`
	Map   map[string]Value `json:"map"`
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func IntValue(i int64) Value {
	return Value{Kind: KindInt, Int: i}
}

func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

func StringListValue(items []string) Value {
	if items == nil {
		items = []string{}
	}

	return Value{Kind: KindStringList, List: items}
}

func MapValue(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}

	return Value{Kind: KindMap, Map: m}
}

// AsString returns the string payload, or "" when the value is not a string.
func (v Value) AsString() string {
	if v.Kind != KindString {
		return ""
	}

	return v.Str
}

func (v Value) AsInt() int64 {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return int64(v.Float)
	default:
		return 0
	}
}

func (v Value) AsFloat() float64 {
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInt:
		return float64(v.Int)
	default:
		return 0
	}
}

func (v Value) AsStringList() []string {
	if v.Kind != KindStringList {
		return nil
	}

	return v.List
}

func (v Value) AsMap() map[string]Value {
	if v.Kind != KindMap {
		return nil
	}

	return v.Map
}

// IsCollection reports whether the value holds multiple items. Progress
// reports summarize collections by count instead of printing them inline.
func (v Value) IsCollection() bool {
	return v.Kind == KindStringList || v.Kind == KindMap
}

// Len returns the item count for collection kinds and 0 otherwise.
func (v Value) Len() int {
	switch v.Kind {
	case KindStringList:
		return len(v.List)
	case KindMap:
		return len(v.Map)
	default:
		return 0
	}
}

// Display renders the value for human-readable output: collections as an item
// count, scalars literally.
func (v Value) Display() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindStringList:
		return fmt.Sprintf("%d items", len(v.List))
	case KindMap:
		return fmt.Sprintf("%d entries", len(v.Map))
	default:
		return ""
	}
}

// Validate checks that the kind tag is one of the known kinds.
func (v Value) Validate() error {
	switch v.Kind {
	case KindString, KindInt, KindFloat, KindStringList, KindMap:
		return nil
	default:
		return fmt.Errorf("unknown value kind: %q", v.Kind)
	}
}

// UnmarshalJSON rejects documents with an unknown kind tag so that corrupt
// state surfaces at load time rather than deep inside a step.
func (v *Value) UnmarshalJSON(data []byte) error {
	type alias Value

	var decoded alias

	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*v = Value(decoded)

	// Collection kinds always carry a non-nil payload, even when empty.
	switch v.Kind {
	case KindStringList:
		if v.List == nil {
			v.List = []string{}
		}
	case KindMap:
		if v.Map == nil {
			v.Map = map[string]Value{}
		}
	}

	return v.Validate()
}

// Plain converts the value to the untyped form used when validating against a
// JSON Schema and when rendering templates.
func (v Value) Plain() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindStringList:
		return v.List
	case KindMap:
		return PlainMap(v.Map)
	default:
		return nil
	}
}

// PlainMap converts a value map to its untyped form.
func PlainMap(m map[string]Value) map[string]any {
	plain := make(map[string]any, len(m))
	for k, v := range m {
		plain[k] = v.Plain()
	}

	return plain
}

// MergeValues copies every entry of src into dst, overwriting on conflict.
// Returns dst for chaining; allocates when dst is nil.
func MergeValues(dst, src map[string]Value) map[string]Value {
	if dst == nil {
		dst = make(map[string]Value, len(src))
	}

	for k, val := range src {
		dst[k] = val
	}

	return dst
}
