package transform

import (
	"strings"
	"testing"

	"github.com/alienzhou/esm.sh/internal/compiler/source"
)

func TestJSXClassicLowering(t *testing.T) {
	code := `import React from "./react";
export const App = () => <div className="x">hi</div>;
`
	driver := &mapDriver{urls: map[string]string{"./react": "https://cdn.example/react@18"}}
	out := runPipeline(t, "/src/App.jsx", code, source.JSX, driver, Options{})

	if !strings.Contains(out.Code, `React.createElement("div", { className: "x" }, "hi")`) {
		t.Errorf("classic factory call missing:\n%s", out.Code)
	}
	if !strings.Contains(out.Code, `import React from "https://cdn.example/react@18";`) {
		t.Errorf("pragma import must survive unused-import removal:\n%s", out.Code)
	}
	if strings.Contains(out.Code, "<div") {
		t.Errorf("markup must be fully lowered:\n%s", out.Code)
	}
	if len(out.Deps) != 1 || out.Deps[0].Specifier != "https://cdn.example/react@18" {
		t.Errorf("react dependency must survive pruning: %+v", out.Deps)
	}
}

func TestJSXAutomaticLowering(t *testing.T) {
	code := "const App = () => <div className=\"x\">hi</div>;\n"
	opts := Options{JSXImportSource: "https://cdn.example/react@18"}
	out := runPipeline(t, "/src/App.jsx", code, source.JSX, &mapDriver{}, opts)

	if !strings.Contains(out.Code, `from "https://cdn.example/react@18/jsx-runtime";`) {
		t.Errorf("runtime import missing:\n%s", out.Code)
	}
	if !strings.Contains(out.Code, `_jsx("div", { className: "x", children: "hi" })`) {
		t.Errorf("automatic call missing:\n%s", out.Code)
	}
}

func TestJSXFragmentAndMultipleChildren(t *testing.T) {
	code := "const f = <><a/><b/></>;\n"

	classic := runPipeline(t, "/src/f.jsx", code, source.JSX, &mapDriver{}, Options{})
	if !strings.Contains(classic.Code,
		`React.createElement(React.Fragment, null, React.createElement("a", null), React.createElement("b", null))`) {
		t.Errorf("classic fragment lowering:\n%s", classic.Code)
	}

	automatic := runPipeline(t, "/src/f.jsx", code, source.JSX, &mapDriver{}, Options{JSXImportSource: "react"})
	if !strings.Contains(automatic.Code, `_jsxs(_Fragment, { children: [_jsx("a", {}), _jsx("b", {})] })`) {
		t.Errorf("automatic fragment lowering:\n%s", automatic.Code)
	}
}

func TestJSXSpreadProps(t *testing.T) {
	code := "const e = <div {...rest} id=\"a\"/>;\n"
	out := runPipeline(t, "/src/s.jsx", code, source.JSX, &mapDriver{}, Options{})
	if !strings.Contains(out.Code, `React.createElement("div", Object.assign({}, rest, { id: "a" }))`) {
		t.Errorf("spread props lowering:\n%s", out.Code)
	}
}

func TestJSXKeyExtraction(t *testing.T) {
	code := "const e = <li key={id} v=\"1\"/>;\n"
	out := runPipeline(t, "/src/k.jsx", code, source.JSX, &mapDriver{}, Options{JSXImportSource: "react"})
	if !strings.Contains(out.Code, `_jsx("li", { v: "1" }, id)`) {
		t.Errorf("key must become the third argument:\n%s", out.Code)
	}
}

func TestJSXComponentTags(t *testing.T) {
	code := "const e = <Widget x={1}/>;\nconst m = <Foo.Bar/>;\n"
	out := runPipeline(t, "/src/c.jsx", code, source.JSX, &mapDriver{}, Options{JSXImportSource: "react"})
	if !strings.Contains(out.Code, `_jsx(Widget, { x: 1 })`) {
		t.Errorf("capitalized tags are component references:\n%s", out.Code)
	}
	if !strings.Contains(out.Code, `_jsx(Foo.Bar, {})`) {
		t.Errorf("member tags stay expressions:\n%s", out.Code)
	}
}

func TestJSXNestedExpressionChildren(t *testing.T) {
	code := "const e = <div>{cond ? <a/> : null}</div>;\n"
	out := runPipeline(t, "/src/n.jsx", code, source.JSX, &mapDriver{}, Options{JSXImportSource: "react"})
	if !strings.Contains(out.Code, `_jsx("div", { children: cond ? _jsx("a", {}) : null })`) {
		t.Errorf("jsx nested in expression children must lower too:\n%s", out.Code)
	}
}

func TestJSXTextWhitespace(t *testing.T) {
	code := "const e = <p>\n  first\n  second\n</p>;\n"
	out := runPipeline(t, "/src/w.jsx", code, source.JSX, &mapDriver{}, Options{JSXImportSource: "react"})
	if !strings.Contains(out.Code, `_jsx("p", { children: "first second" })`) {
		t.Errorf("interior whitespace collapses to one space:\n%s", out.Code)
	}
}

func TestTSXStripsTypesAndLowersJSX(t *testing.T) {
	code := `const App = (props: { n: number }) => <b>{props.n as number}</b>;
`
	out := runPipeline(t, "/src/App.tsx", code, source.TSX, &mapDriver{}, Options{JSXImportSource: "react"})
	if strings.Contains(out.Code, ": number") || strings.Contains(out.Code, "as number") {
		t.Errorf("tsx must be type-stripped:\n%s", out.Code)
	}
	if !strings.Contains(out.Code, `_jsx("b", { children: props.n })`) {
		t.Errorf("tsx must be jsx-lowered:\n%s", out.Code)
	}
}
