package binding

import "testing"

func TestInterpolate(t *testing.T) {
	props := map[string]any{
		"name": "Main St",
		"ref":  float64(101),
		"address": map[string]interface{}{
			"parts": []interface{}{"north", "side"},
		},
		"name:en": "Main Street",
	}
	cases := []struct {
		in   string
		want string
	}{
		{"{name}", "Main St"},
		{"{ref} / {name}", "101 / Main St"},
		{"{address.parts[1]}", "side"},
		{"{name:en}", "Main Street"},
		{"{missing}", ""},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := Interpolate(tc.in, props); got != tc.want {
			t.Fatalf("Interpolate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInterpolateNilProps(t *testing.T) {
	if got := Interpolate("{name}!", nil); got != "!" {
		t.Fatalf("unexpected result %q", got)
	}
	if !HasTokens("{a}") || HasTokens("a") {
		t.Fatalf("HasTokens mismatch")
	}
}

func TestLookupPaths(t *testing.T) {
	props := map[string]any{
		"a":   map[string]any{"b": []any{[]any{"x", "y"}, "z"}},
		"a.b": "flat",
		"n":   3,
	}
	if v, ok := Lookup(props, "a.b"); !ok || v != "flat" {
		t.Fatalf("整键优先: %v %v", v, ok)
	}
	if v, ok := Lookup(props, "a.b[0][1]"); !ok || v != "y" {
		t.Fatalf("多级下标: %v %v", v, ok)
	}
	for _, bad := range []string{"a.b[x]", "a.b[0]c", "a..b", "a.b[9]", "n.m", ""} {
		if _, ok := Lookup(props, bad); ok {
			t.Fatalf("%q 不应命中", bad)
		}
	}
	if got := Interpolate("#{n}", props); got != "#3" {
		t.Fatalf("整数格式化: %q", got)
	}
}
