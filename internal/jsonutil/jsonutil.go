// Package jsonutil provides null-safe accessors over loosely structured JSON
// documents. Every accessor is total: missing keys, wrong types and JSON null
// yield an absent Value or the supplied default rather than an error.
package jsonutil

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by Parse for bodies that are not a single JSON value
var ErrInvalidJSON = errors.New("invalid json")

// Value is a node of a parsed document. The zero Value is absent.
type Value = gjson.Result

// Parse validates b and returns its root node
func Parse(b []byte) (Value, error) {
	if !gjson.ValidBytes(b) {
		return Value{}, ErrInvalidJSON
	}
	return gjson.ParseBytes(b), nil
}

// Present reports whether v holds a non-null value
func Present(v Value) bool {
	return v.Exists() && v.Type != gjson.Null
}

// Object returns member key of v, or an absent Value when v is not an object
func Object(v Value, key string) Value {
	if !v.IsObject() {
		return Value{}
	}
	m := v.Get(gjson.Escape(key))
	if !Present(m) {
		return Value{}
	}
	return m
}

// Path follows a chain of object keys
func Path(v Value, keys ...string) Value {
	for _, k := range keys {
		v = Object(v, k)
		if !Present(v) {
			return Value{}
		}
	}
	return v
}

// Index returns element i of v, or an absent Value when v is not an array or
// i is out of range
func Index(v Value, i int) Value {
	if !v.IsArray() || i < 0 {
		return Value{}
	}
	e := v.Get(strconv.Itoa(i))
	if !Present(e) {
		return Value{}
	}
	return e
}

// Len returns the length of v when it is an array, else 0
func Len(v Value) int {
	if !v.IsArray() {
		return 0
	}
	return int(v.Get("#").Int())
}

// String returns v when it is a JSON string
func String(v Value) (string, bool) {
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

// Int returns v as an int. Numbers are truncated toward zero; numeric strings
// are accepted since upstream feeds encode numbers inconsistently.
func Int(v Value, def int) int {
	f, ok := number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return def
	}
	return int(f)
}

// Float returns v as a float64, accepting numbers and numeric strings
func Float(v Value, def float64) float64 {
	f, ok := number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// number only accepts JSON numbers and strings that parse completely, so
// "2 stops" stays absent where gjson's own Int() would read 0.
func number(v Value) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
