package parser

import (
	"testing"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
	"github.com/alienzhou/esm.sh/internal/core/errors"
)

func mustParse(t *testing.T, path, code string, kind source.Kind) *ast.Module {
	t.Helper()
	mod, err := Parse(path, []byte(code), kind)
	if err != nil {
		t.Fatal(err)
	}
	return mod
}

func TestParseRoundTrip(t *testing.T) {
	code := `import React, { useState } from "react";
import "./side-effect";
export { a, b as c } from './names';
export * as ns from "./namespace";
export * from "./star";
const f = () => import("./lazy");
function g() {
  return import(dynamic ? "./a" : "./b");
}
`
	mod := mustParse(t, "app.js", code, source.JS)
	if got := mod.Print(); got != code {
		t.Errorf("round trip drifted:\n got: %q\nwant: %q", got, code)
	}
}

func TestParseOccurrences(t *testing.T) {
	code := `import a from "./a";
export { x } from "./b";
export * as ns from "./c";
export * from "./d";
const p = import("./e");
`
	mod := mustParse(t, "app.js", code, source.JS)

	var imports, froms, stars, dynamics int
	for _, n := range mod.Body {
		switch n.(type) {
		case *ast.ImportDecl:
			imports++
		case *ast.ExportFrom:
			froms++
		case *ast.ExportStar:
			stars++
		case *ast.DynamicImport:
			dynamics++
		}
	}
	if imports != 1 || froms != 2 || stars != 1 || dynamics != 1 {
		t.Errorf("occurrence counts = import:%d from:%d star:%d dynamic:%d", imports, froms, stars, dynamics)
	}
}

func TestNamespaceReExportIsNotWildcard(t *testing.T) {
	mod := mustParse(t, "app.js", `export * as ns from "./c";`, source.JS)
	for _, n := range mod.Body {
		if _, ok := n.(*ast.ExportStar); ok {
			t.Fatal("namespace re-export must be a named re-export, not a wildcard")
		}
	}
}

func TestTypeOnlyFlag(t *testing.T) {
	code := `import type { Props } from "./types";
import { type A, b } from "./mixed";
export type { T } from "./t";
export { v } from "./v";
`
	mod := mustParse(t, "app.ts", code, source.TS)

	var decls []ast.Node
	for _, n := range mod.Body {
		switch n.(type) {
		case *ast.ImportDecl, *ast.ExportFrom:
			decls = append(decls, n)
		}
	}
	if len(decls) != 4 {
		t.Fatalf("expected 4 declarations, got %d", len(decls))
	}
	if !decls[0].(*ast.ImportDecl).TypeOnly {
		t.Error("import type must be type-only")
	}
	if decls[1].(*ast.ImportDecl).TypeOnly {
		t.Error("specifier-level type marker must not make the statement type-only")
	}
	if !decls[2].(*ast.ExportFrom).TypeOnly {
		t.Error("export type must be type-only")
	}
	if decls[3].(*ast.ExportFrom).TypeOnly {
		t.Error("plain re-export must not be type-only")
	}
}

func TestDynamicImportShapes(t *testing.T) {
	code := `const a = import("./literal");
const b = import(variable);
const c = import(` + "`./tpl`" + `);
const d = import("./with-extra", { assert: {} });
const e = other.import("./not-dynamic");
const f = import(cond ? import("./nested") : fallback);
`
	mod := mustParse(t, "app.js", code, source.JS)

	var got []string
	for _, n := range mod.Body {
		if di, ok := n.(*ast.DynamicImport); ok {
			got = append(got, di.Arg.Value)
		}
	}
	want := []string{"./literal", "./with-extra", "./nested"}
	if len(got) != len(want) {
		t.Fatalf("dynamic imports = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dynamic import %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("broken.js", []byte("import { from 'x';\n"), source.JS)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !errors.IsCode(err, errors.CodeParse) {
		t.Errorf("expected PARSE_ERROR, got %v", err)
	}
}

func TestUnknownKindParsesTSX(t *testing.T) {
	// Ambiguous extensions take the TSX-capable path, so typed markup
	// still parses.
	code := "const v: number = 1;\nconst el = <div a={v} />;\n"
	if _, err := Parse("ambiguous", []byte(code), source.Unknown); err != nil {
		t.Fatalf("unknown kind should parse TSX syntax: %v", err)
	}
}
