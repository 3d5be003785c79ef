package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Decode parses a JSON document. Number literals are kept alongside their
// float value so integers re-encode unchanged.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Null, fmt.Errorf("decode json: trailing data after document")
	}
	return FromAny(raw), nil
}

// FromAny converts decoded encoding/json trees and common Go scalars into a
// Value. Unsupported types become Null.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null
	case Value:
		return t
	case *Value:
		if t == nil {
			return Null
		}
		return *t
	case bool:
		return Bool(t)
	case *bool:
		if t == nil {
			return Null
		}
		return Bool(*t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null
		}
		return Value{kind: KindNumber, num: f, lit: t.String()}
	case float64:
		return Number(t)
	case *float64:
		if t == nil {
			return Null
		}
		return Number(*t)
	case float32:
		return Number(float64(t))
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case *int64:
		if t == nil {
			return Null
		}
		return Int(*t)
	case string:
		return String(t)
	case *string:
		if t == nil {
			return Null
		}
		return String(*t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items)
	case []Value:
		return List(t)
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return List(items)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Map(m)
	case map[string]Value:
		return Map(t)
	case map[string][]string:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Map(m)
	}
	return Null
}
