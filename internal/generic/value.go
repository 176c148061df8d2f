// Package generic holds the loosely typed value exchanged at the system
// boundaries: model responses, exported files and reloaded records.
package generic

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	NullKind Kind = iota
	StringKind
	NumberKind
	BoolKind
	MapKind
	ListKind
)

func (k Kind) String() string {
	switch k {
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	case BoolKind:
		return "bool"
	case MapKind:
		return "map"
	case ListKind:
		return "list"
	default:
		return "null"
	}
}

// object keeps map keys in insertion order so exports read like the model wrote them.
type object struct {
	keys   []string
	fields map[string]Value
}

// Value is a tagged variant of string, number, bool, map, list or null.
// The zero Value is null. Accessors never panic: asking a value for a shape
// it does not have yields the null Value, an empty result or false.
type Value struct {
	kind   Kind
	scalar string // string contents or number literal
	b      bool
	obj    *object
	items  []Value
}

// Str returns a string Value.
func Str(s string) Value {
	return Value{kind: StringKind, scalar: s}
}

// Num returns a number Value holding the literal as written.
func Num(n json.Number) Value {
	return Value{kind: NumberKind, scalar: string(n)}
}

// Float returns a number Value. NaN and infinities become null since JSON cannot carry them.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: NumberKind, scalar: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Boolean returns a bool Value.
func Boolean(b bool) Value {
	return Value{kind: BoolKind, b: b}
}

// NewMap returns an empty map Value ready for Set.
func NewMap() Value {
	return Value{kind: MapKind, obj: &object{fields: make(map[string]Value)}}
}

// ListOf returns a list Value holding items in order.
func ListOf(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: ListKind, items: items}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == NullKind
}

// Set stores key in a map Value, keeping the original position of an existing key.
// It does nothing on other kinds.
func (v Value) Set(key string, val Value) {
	if v.kind != MapKind {
		return
	}
	if _, ok := v.obj.fields[key]; !ok {
		v.obj.keys = append(v.obj.keys, key)
	}
	v.obj.fields[key] = val
}

// Get returns the value under key, or null when v is not a map or lacks the key.
func (v Value) Get(key string) Value {
	if v.kind != MapKind {
		return Value{}
	}
	return v.obj.fields[key]
}

// Has reports whether v is a map containing key.
func (v Value) Has(key string) bool {
	if v.kind != MapKind {
		return false
	}
	_, ok := v.obj.fields[key]
	return ok
}

// Keys returns the map keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != MapKind {
		return nil
	}
	keys := make([]string, len(v.obj.keys))
	copy(keys, v.obj.keys)
	return keys
}

// Items returns the elements of a list Value.
func (v Value) Items() []Value {
	if v.kind != ListKind {
		return nil
	}
	return v.items
}

// Len is the number of map entries or list elements.
func (v Value) Len() int {
	switch v.kind {
	case MapKind:
		return len(v.obj.keys)
	case ListKind:
		return len(v.items)
	}
	return 0
}

// AsString returns the contents of a string Value.
func (v Value) AsString() (string, bool) {
	if v.kind != StringKind {
		return "", false
	}
	return v.scalar, true
}

// AsFloat returns the numeric value of a number Value.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != NumberKind {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.scalar, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Truthy follows the usual dynamic-language rules: null, false, zero,
// the empty string and empty containers are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case StringKind:
		return v.scalar != ""
	case NumberKind:
		f, ok := v.AsFloat()
		return ok && f != 0
	case BoolKind:
		return v.b
	case MapKind, ListKind:
		return v.Len() > 0
	}
	return false
}

// Text renders a value as display text. Containers render as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case StringKind:
		return v.scalar
	case NumberKind:
		if strings.ContainsAny(v.scalar, "eE") {
			if f, err := strconv.ParseFloat(v.scalar, 64); err == nil {
				return strconv.FormatFloat(f, 'f', -1, 64)
			}
		}
		return v.scalar
	case BoolKind:
		return strconv.FormatBool(v.b)
	case MapKind, ListKind:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
	return ""
}

// Scalar returns nil for null and the display text otherwise.
func (v Value) Scalar() any {
	if v.kind == NullKind {
		return nil
	}
	return v.Text()
}

// Interface converts v into plain Go values: map[string]any, []any,
// string, json.Number, bool or nil.
func (v Value) Interface() any {
	switch v.kind {
	case StringKind:
		return v.scalar
	case NumberKind:
		return json.Number(v.scalar)
	case BoolKind:
		return v.b
	case MapKind:
		m := make(map[string]any, len(v.obj.keys))
		for _, k := range v.obj.keys {
			m[k] = v.obj.fields[k].Interface()
		}
		return m
	case ListKind:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}
