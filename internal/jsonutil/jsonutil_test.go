package jsonutil

import "testing"

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "{", "not json", `{"a":}`} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestAccessorsAreNilSafe(t *testing.T) {
	doc := mustParse(t, `{"a":{"b":[{"c":"x"},2]},"s":"str","n":null}`)

	if got, _ := String(Path(doc, "a", "b")); got != "" {
		t.Errorf("array is not a string, got %q", got)
	}
	if s, ok := String(Object(Index(Path(doc, "a", "b"), 0), "c")); !ok || s != "x" {
		t.Errorf("expected x, got %q %v", s, ok)
	}
	if Present(Path(doc, "a", "missing", "deeper")) {
		t.Error("missing path should be absent")
	}
	if Present(Object(Value{}, "a")) || Present(Object(Object(doc, "s"), "a")) {
		t.Error("Object on non-object should be absent")
	}
	if Present(Index(doc, 0)) || Present(Index(Path(doc, "a", "b"), 5)) || Present(Index(Path(doc, "a", "b"), -1)) {
		t.Error("Index out of range or on non-array should be absent")
	}
	if Len(Path(doc, "a", "b")) != 2 || Len(doc) != 0 || Len(Value{}) != 0 {
		t.Error("unexpected Len results")
	}
	if Present(Object(doc, "n")) {
		t.Error("JSON null should read as absent")
	}
	if !Present(Object(doc, "s")) {
		t.Error("string member should be present")
	}
}

func TestIntAndFloat(t *testing.T) {
	doc := mustParse(t, `{"i":7,"f":3.9,"neg":-2.5,"si":" 12 ","sf":"1609.344","bad":"abc","partial":"2 stops","b":true,"big":1e20}`)

	tests := []struct {
		key     string
		wantInt int
		wantFlt float64
	}{
		{key: "i", wantInt: 7, wantFlt: 7},
		{key: "f", wantInt: 3, wantFlt: 3.9},
		{key: "neg", wantInt: -2, wantFlt: -2.5},
		{key: "si", wantInt: 12, wantFlt: 12},
		{key: "sf", wantInt: 1609, wantFlt: 1609.344},
		{key: "bad", wantInt: -1, wantFlt: -1},
		{key: "partial", wantInt: -1, wantFlt: -1},
		{key: "b", wantInt: -1, wantFlt: -1},
		{key: "big", wantInt: -1, wantFlt: 1e20},
		{key: "absent", wantInt: -1, wantFlt: -1},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := Object(doc, tt.key)
			if got := Int(v, -1); got != tt.wantInt {
				t.Errorf("Int: expected %d, got %d", tt.wantInt, got)
			}
			if got := Float(v, -1); got != tt.wantFlt {
				t.Errorf("Float: expected %v, got %v", tt.wantFlt, got)
			}
		})
	}
}
