package source

import "testing"

func TestFromPath(t *testing.T) {
	cases := []struct {
		path string
		want Kind
	}{
		{"app.js", JS},
		{"app.mjs", JS},
		{"app.cjs", JS},
		{"app.jsx", JSX},
		{"app.ts", TS},
		{"app.mts", TS},
		{"App.TSX", TSX},
		{"https://cdn.example/react@18/index.js?dev", JS},
		{"/src/components/Button.tsx#frag", TSX},
		{"Makefile", Unknown},
		{"mod.wasm", Unknown},
	}

	for _, tc := range cases {
		if got := FromPath(tc.path); got != tc.want {
			t.Errorf("FromPath(%q) = %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestKindGates(t *testing.T) {
	if !JSX.JSX() || !TSX.JSX() {
		t.Error("jsx/tsx kinds must enable JSX lowering")
	}
	if JS.JSX() || TS.JSX() || Unknown.JSX() {
		t.Error("non-markup kinds must not enable JSX lowering")
	}
	// Unknown falls back to the TSX-capable parse path.
	if !Unknown.JSXCapable() {
		t.Error("unknown kind must take the TSX-capable path")
	}
	if JS.JSXCapable() || TS.JSXCapable() {
		t.Error("plain kinds must not take the TSX-capable path")
	}
}
