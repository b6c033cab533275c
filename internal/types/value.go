// Package types defines the dynamically typed scalar values that flow
// through rows, WAL records, and index keys.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags which branch of Value is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

// Value is a tagged union over the scalar types a row column may hold:
// integer, floating-point, string, bool, or null. Schema type tags
// (spec.md's "advisory" column types) are not enforced here; only
// column presence is.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func Null() Value              { return Value{kind: KindNull} }
func Int(v int64) Value        { return Value{kind: KindInt, i: v} }
func Float(v float64) Value    { return Value{kind: KindFloat, f: v} }
func String(v string) Value    { return Value{kind: KindString, s: v} }
func Bool(v bool) Value        { return Value{kind: KindBool, b: v} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Int() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Str() (string, bool)    { return v.s, v.kind == KindString }
func (v Value) Bool() (bool, bool)     { return v.b, v.kind == KindBool }

// Raw returns the Go-native value behind v, for callers (BSON
// marshaling, JSON projection) that want the concrete type rather than
// a Value wrapper.
func (v Value) Raw() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// FromRaw wraps a Go-native scalar (e.g. one decoded off the wire)
// into a Value; an unrecognised type becomes its %v string form.
func FromRaw(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case string:
		return String(x)
	case bool:
		return Bool(x)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// Compare defines a total order across Values: null < int/float
// (numerically, mixed int/float compare by float value) < string < bool.
// Compare between incomparable kinds falls back to kind ordering so
// that Compare is always well-defined (needed for the ordered index,
// which only ever compares values drawn from the same column and thus
// the same kind in practice).
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		if n, nok := v.numeric(); nok {
			if m, mok := other.numeric(); mok {
				return compareFloat(n, m)
			}
		}
		return int(v.kind) - int(other.kind)
	}

	switch v.kind {
	case KindNull:
		return 0
	case KindBool:
		if v.b == other.b {
			return 0
		}
		if !v.b {
			return -1
		}
		return 1
	case KindInt:
		if v.i < other.i {
			return -1
		}
		if v.i > other.i {
			return 1
		}
		return 0
	case KindFloat:
		return compareFloat(v.f, other.f)
	case KindString:
		if v.s < other.s {
			return -1
		}
		if v.s > other.s {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Equal reports whether two values compare equal.
func (v Value) Equal(other Value) bool { return v.Compare(other) == 0 }

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// jsonValue is the wire shape for Value: a kind tag plus whichever
// field that kind populates. Used for both the on-disk snapshot
// (snapshot.json) and WAL payload encoding, so that both share one
// deterministic round-trip for rows and schemas.
type jsonValue struct {
	K string  `json:"k"`
	I int64   `json:"i,omitempty"`
	F float64 `json:"f,omitempty"`
	S string  `json:"s,omitempty"`
	B bool    `json:"b,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{}
	switch v.kind {
	case KindNull:
		jv.K = "null"
	case KindInt:
		jv.K = "int"
		jv.I = v.i
	case KindFloat:
		jv.K = "float"
		jv.F = v.f
	case KindString:
		jv.K = "string"
		jv.S = v.s
	case KindBool:
		jv.K = "bool"
		jv.B = v.b
	}
	return json.Marshal(jv)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	switch jv.K {
	case "null", "":
		*v = Null()
	case "int":
		*v = Int(jv.I)
	case "float":
		*v = Float(jv.F)
	case "string":
		*v = String(jv.S)
	case "bool":
		*v = Bool(jv.B)
	default:
		return fmt.Errorf("types: unknown value kind %q", jv.K)
	}
	return nil
}

// Row is a mapping from column name to scalar value.
type Row map[string]Value

// Clone returns a shallow copy of the row (Values are immutable, so a
// shallow copy is a full copy).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Schema maps a table's column names to an advisory type tag
// (e.g. "INTEGER", "TEXT").
type Schema map[string]string
