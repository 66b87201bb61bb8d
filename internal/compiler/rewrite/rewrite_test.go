package rewrite

import (
	"fmt"
	"testing"

	"github.com/alienzhou/esm.sh/internal/compiler/parser"
	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
	"github.com/alienzhou/esm.sh/internal/core/errors"
)

type mapDriver map[string]string

func (d mapDriver) Resolve(base, specifier string, dynamic bool) (string, error) {
	if url, ok := d[specifier]; ok {
		return url, nil
	}
	return "", fmt.Errorf("unknown specifier %q", specifier)
}

func (d mapDriver) IsRemote(string) bool { return false }

// identityDriver resolves every specifier to itself.
type identityDriver struct{}

func (identityDriver) Resolve(base, specifier string, dynamic bool) (string, error) {
	return specifier, nil
}

func (identityDriver) IsRemote(string) bool { return false }

func rewriteSource(t *testing.T, code string, kind source.Kind, driver resolver.Driver) (string, *resolver.Resolver) {
	t.Helper()
	mod, err := parser.Parse("app."+kind.String(), []byte(code), kind)
	if err != nil {
		t.Fatal(err)
	}
	res := resolver.New("/src/app."+kind.String(), driver)
	out, err := Apply(mod, res)
	if err != nil {
		t.Fatal(err)
	}
	return out.Print(), res
}

func TestRewriteStatic(t *testing.T) {
	code := `import React, { useState } from 'react';
export { a as b } from 'react';
export * from "star-pkg";
`
	driver := mapDriver{
		"react":    "https://cdn.example/react@18",
		"star-pkg": "https://cdn.example/star@1",
	}
	out, res := rewriteSource(t, code, source.JS, driver)

	want := `import React, { useState } from "https://cdn.example/react@18";
export { a as b } from "https://cdn.example/react@18";
export * from "https://cdn.example/star@1";
`
	if out != want {
		t.Errorf("rewrite mismatch:\n got: %q\nwant: %q", out, want)
	}
	if len(res.Deps()) != 3 {
		t.Errorf("expected 3 ledger entries, got %d", len(res.Deps()))
	}
	if !res.IsStarExport("https://cdn.example/star@1") {
		t.Error("wildcard re-export must register its resolved specifier")
	}
	if res.IsStarExport("https://cdn.example/react@18") {
		t.Error("plain imports must not register star exports")
	}
}

func TestTypeOnlyPassesThrough(t *testing.T) {
	code := `import type { Props } from './types';
export type { T } from './types';
`
	out, res := rewriteSource(t, code, source.TS, mapDriver{})
	if out != code {
		t.Errorf("type-only occurrences must be byte-identical:\n got: %q\nwant: %q", out, code)
	}
	if len(res.Deps()) != 0 {
		t.Errorf("type-only occurrences must not reach the ledger, got %d entries", len(res.Deps()))
	}
}

func TestRewriteDynamic(t *testing.T) {
	code := `const a = () => import('pkg/lazy');
const b = () => import(someVariable);
const c = () => import("pkg/lazy", { assert: { type: "json" } });
`
	out, res := rewriteSource(t, code, source.JS, mapDriver{"pkg/lazy": "https://cdn.example/lazy@1"})

	want := `const a = () => import("https://cdn.example/lazy@1");
const b = () => import(someVariable);
const c = () => import("https://cdn.example/lazy@1");
`
	if out != want {
		t.Errorf("dynamic rewrite mismatch:\n got: %q\nwant: %q", out, want)
	}
	for _, dep := range res.Deps() {
		if !dep.Dynamic {
			t.Errorf("expected dynamic ledger entry, got %+v", dep)
		}
	}
	if len(res.Deps()) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(res.Deps()))
	}
}

func TestRewriteIdempotent(t *testing.T) {
	code := `import React from 'react';
export * from 'star-pkg';
const f = () => import('pkg/lazy');
`
	driver := mapDriver{
		"react":    "https://cdn.example/react@18",
		"star-pkg": "https://cdn.example/star@1",
		"pkg/lazy": "https://cdn.example/lazy@1",
	}
	first, _ := rewriteSource(t, code, source.JS, driver)
	second, _ := rewriteSource(t, first, source.JS, identityDriver{})
	if second != first {
		t.Errorf("re-running the rewriter drifted:\nfirst:  %q\nsecond: %q", first, second)
	}
}

func TestRewriteFailureAborts(t *testing.T) {
	code := `import a from 'known';
import b from 'unknown';
`
	mod, err := parser.Parse("app.js", []byte(code), source.JS)
	if err != nil {
		t.Fatal(err)
	}
	res := resolver.New("/src/app.js", mapDriver{"known": "https://cdn.example/known@1"})
	out, err := Apply(mod, res)
	if err == nil {
		t.Fatal("expected resolution failure")
	}
	if !errors.IsCode(err, errors.CodeResolution) {
		t.Errorf("expected RESOLUTION_ERROR, got %v", err)
	}
	if out != nil {
		t.Error("no partially rewritten tree may be returned")
	}
}

func TestRewriteLeavesOtherTextAlone(t *testing.T) {
	code := "const s = \"react\";\nconsole.log(s);\n"
	out, res := rewriteSource(t, code, source.JS, mapDriver{})
	if out != code {
		t.Errorf("non-specifier text must be untouched:\n got: %q", out)
	}
	if len(res.Deps()) != 0 {
		t.Error("plain string literals are not dependencies")
	}
}
