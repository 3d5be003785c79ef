package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Value is a decoded JSON document node. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	num  float64
	lit  string // original number literal, empty when built from a float
	str  string
	list []Value
	obj  map[string]Value
}

var Null = Value{}

func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Number(f float64) Value   { return Value{kind: KindNumber, num: f} }
func Int(i int64) Value        { return Value{kind: KindNumber, num: float64(i), lit: strconv.FormatInt(i, 10)} }
func String(s string) Value    { return Value{kind: KindString, str: s} }
func List(items []Value) Value { return Value{kind: KindList, list: items} }
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, obj: m}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean and whether v is a Bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Float returns the numeric value and whether v is a Number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Int returns the value as an integer when v is a Number with no fractional
// part that fits in an int64.
func (v Value) Int() (int64, bool) {
	if v.kind != KindNumber || v.num != math.Trunc(v.num) || math.IsInf(v.num, 0) {
		return 0, false
	}
	if v.num < math.MinInt64 || v.num >= math.MaxInt64 {
		return 0, false
	}
	return int64(v.num), true
}

// Str returns the string and whether v is a String.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

func (v Value) Map() (map[string]Value, bool) { return v.obj, v.kind == KindMap }

// Get returns the member at key, or Null when v is not a map or the key is absent.
func (v Value) Get(key string) Value {
	if v.kind != KindMap {
		return Null
	}
	return v.obj[key]
}

// Path walks nested maps, returning Null at the first missing step.
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
		if cur.IsNull() {
			return Null
		}
	}
	return cur
}

// Keys returns map keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text renders scalars the way they appeared in the document: strings as-is,
// numbers by their literal, booleans as true/false. Lists, maps and null
// report false.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		if v.lit != "" {
			return v.lit, true
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	}
	return "", false
}

// Equal compares two values structurally. Numbers compare by value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, a := range v.obj {
			b, ok := o.obj[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v back to plain Go values: nil, bool, float64, string,
// []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

func (v Value) String() string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if v.lit != "" {
			buf.WriteString(v.lit)
			return nil
		}
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("jsonval: unsupported number %v", v.num)
		}
		buf.WriteString(strconv.FormatFloat(v.num, 'f', -1, 64))
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
