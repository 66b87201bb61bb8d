package transform

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alienzhou/esm.sh/internal/compiler/parser"
	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
)

type mapDriver struct {
	urls   map[string]string
	remote bool
}

func (d *mapDriver) Resolve(base, specifier string, dynamic bool) (string, error) {
	if url, ok := d.urls[specifier]; ok {
		return url, nil
	}
	return "", fmt.Errorf("unknown specifier %q", specifier)
}

func (d *mapDriver) IsRemote(string) bool { return d.remote }

func runPipeline(t *testing.T, path, code string, kind source.Kind, driver resolver.Driver, opts Options) *Result {
	t.Helper()
	mod, err := parser.Parse(path, []byte(code), kind)
	if err != nil {
		t.Fatal(err)
	}
	res := resolver.New(path, driver)
	c := NewContext(path, kind, opts, res)
	out, err := Run(context.Background(), c, mod)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func stageStates(c *Context) map[string]bool {
	states := make(map[string]bool)
	for _, st := range Stages(c) {
		states[st.Name] = st.Enabled
	}
	return states
}

func TestStageOrderIsFixed(t *testing.T) {
	res := resolver.New("/src/app.tsx", &mapDriver{})
	c := NewContext("/src/app.tsx", source.TSX, Options{}, res)

	var names []string
	for _, st := range Stages(c) {
		names = append(names, st.Name)
	}
	want := []string{"scopes", "resolve", "decorators", "helpers", "strip", "strip-jsx", "refresh", "jsx", "fixer", "hygiene"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("stage order = %v, want %v", names, want)
	}
}

func TestStageGates(t *testing.T) {
	cases := []struct {
		name    string
		kind    source.Kind
		dev     bool
		remote  bool
		enabled map[string]bool
	}{
		{
			name: "plain ts",
			kind: source.TS,
			enabled: map[string]bool{
				"strip": true, "strip-jsx": false, "refresh": false, "jsx": false,
			},
		},
		{
			name: "tsx",
			kind: source.TSX,
			enabled: map[string]bool{
				"strip": false, "strip-jsx": true, "jsx": true,
			},
		},
		{
			name: "unknown kind takes the jsx-capable strip path but not jsx lowering",
			kind: source.Unknown,
			enabled: map[string]bool{
				"strip": false, "strip-jsx": true, "jsx": false,
			},
		},
		{
			name: "dev local enables refresh",
			kind: source.JSX,
			dev:  true,
			enabled: map[string]bool{
				"refresh": true, "jsx": true,
			},
		},
		{
			name:   "dev remote never instruments",
			kind:   source.JSX,
			dev:    true,
			remote: true,
			enabled: map[string]bool{
				"refresh": false,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := resolver.New("mod", &mapDriver{remote: tc.remote})
			c := NewContext("mod", tc.kind, Options{DevelopmentMode: tc.dev}, res)
			states := stageStates(c)
			for name, want := range tc.enabled {
				if states[name] != want {
					t.Errorf("stage %s enabled = %v, want %v", name, states[name], want)
				}
			}
			for _, always := range []string{"scopes", "resolve", "decorators", "helpers", "fixer", "hygiene"} {
				if !states[always] {
					t.Errorf("stage %s must always run", always)
				}
			}
			if states["strip"] == states["strip-jsx"] {
				t.Error("exactly one strip variant must run")
			}
		})
	}
}

func TestRunStripsTypesAndPrunes(t *testing.T) {
	code := `import type { T } from "./types";
import { helper, unused } from "./helper";
import { gone } from "./gone";
interface I { x: number }
const v: number = helper(1);
`
	driver := &mapDriver{urls: map[string]string{
		"./helper": "https://cdn.example/helper@1",
		"./gone":   "https://cdn.example/gone@1",
	}}
	out := runPipeline(t, "/src/app.ts", code, source.TS, driver, Options{})

	if strings.Contains(out.Code, "interface") {
		t.Errorf("interface must be stripped:\n%s", out.Code)
	}
	if strings.Contains(out.Code, ": number") {
		t.Errorf("type annotations must be stripped:\n%s", out.Code)
	}
	if strings.Contains(out.Code, "./types") {
		t.Errorf("type-only import must be removed:\n%s", out.Code)
	}
	if !strings.Contains(out.Code, `import { helper } from "https://cdn.example/helper@1";`) {
		t.Errorf("used import must survive with resolved specifier:\n%s", out.Code)
	}
	if strings.Contains(out.Code, "gone@1") {
		t.Errorf("fully unused import must be removed:\n%s", out.Code)
	}

	if len(out.Deps) != 1 {
		t.Fatalf("expected 1 live dependency, got %d: %+v", len(out.Deps), out.Deps)
	}
	if out.Deps[0].Specifier != "https://cdn.example/helper@1" {
		t.Errorf("unexpected surviving dependency: %+v", out.Deps[0])
	}
}

func TestRunSourceMapPresence(t *testing.T) {
	driver := &mapDriver{}
	code := "const a = 1;\nconst b = 2;\n"

	withMap := runPipeline(t, "/src/app.js", code, source.JS, driver, Options{SourceMap: true})
	if withMap.SourceMap == "" {
		t.Error("source map requested but absent")
	}
	if !strings.Contains(withMap.SourceMap, `"version":3`) {
		t.Errorf("expected V3 source map, got %s", withMap.SourceMap)
	}

	withoutMap := runPipeline(t, "/src/app.js", code, source.JS, driver, Options{})
	if withoutMap.SourceMap != "" {
		t.Error("source map present without being requested")
	}
}

func TestRefreshGating(t *testing.T) {
	code := `export function App() { return null; }
const Widget = () => null;
const helper = () => null;
`
	t.Run("dev local instruments components", func(t *testing.T) {
		out := runPipeline(t, "/src/App.js", code, source.JS, &mapDriver{}, Options{DevelopmentMode: true})
		if !strings.Contains(out.Code, `$RefreshReg$(App, "App")`) {
			t.Errorf("expected App registration:\n%s", out.Code)
		}
		if !strings.Contains(out.Code, `$RefreshReg$(Widget, "Widget")`) {
			t.Errorf("expected Widget registration:\n%s", out.Code)
		}
		if strings.Contains(out.Code, `$RefreshReg$(helper`) {
			t.Errorf("lowercase bindings are not components:\n%s", out.Code)
		}
	})

	t.Run("dev remote is never instrumented", func(t *testing.T) {
		out := runPipeline(t, "https://cdn.example/app.js", code, source.JS, &mapDriver{remote: true}, Options{DevelopmentMode: true})
		if strings.Contains(out.Code, "$RefreshReg$") {
			t.Errorf("remote module must not be instrumented:\n%s", out.Code)
		}
	})

	t.Run("production is never instrumented", func(t *testing.T) {
		out := runPipeline(t, "/src/App.js", code, source.JS, &mapDriver{}, Options{})
		if strings.Contains(out.Code, "$RefreshReg$") {
			t.Errorf("production output must not be instrumented:\n%s", out.Code)
		}
	})
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	opts.ApplyDefaults()
	if opts.JSXFactory != "React.createElement" {
		t.Errorf("JSXFactory default = %q", opts.JSXFactory)
	}
	if opts.JSXFragmentFactory != "React.Fragment" {
		t.Errorf("JSXFragmentFactory default = %q", opts.JSXFragmentFactory)
	}
	if opts.DevelopmentMode {
		t.Error("DevelopmentMode must default to false")
	}
}

func TestVLQEncoding(t *testing.T) {
	cases := map[int]string{
		0:  "A",
		1:  "C",
		-1: "D",
		16: "gB",
	}
	for value, want := range cases {
		if got := encodeVLQ(value); got != want {
			t.Errorf("encodeVLQ(%d) = %q, want %q", value, got, want)
		}
	}
}
