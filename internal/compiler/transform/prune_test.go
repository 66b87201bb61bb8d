package transform

import (
	"testing"

	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
)

func TestPrune(t *testing.T) {
	deps := []resolver.DependencyDescriptor{
		{Specifier: "https://cdn.example/a@1"},
		{Specifier: "https://cdn.example/b@1"},
		{Specifier: "https://cdn.example/c@1"},
	}
	star := func(spec string) bool { return spec == "https://cdn.example/c@1" }

	// A survives in the emitted text, B is textually gone, C is only
	// star-exported.
	code := `import { a } from "https://cdn.example/a@1";` + "\n" + `export * from "other";` + "\n"

	kept := Prune(deps, star, code)
	if len(kept) != 2 {
		t.Fatalf("kept %d deps, want 2: %+v", len(kept), kept)
	}
	if kept[0].Specifier != "https://cdn.example/a@1" || kept[1].Specifier != "https://cdn.example/c@1" {
		t.Errorf("unexpected survivors: %+v", kept)
	}
}

func TestPruneMatchesQuotedLiteralOnly(t *testing.T) {
	deps := []resolver.DependencyDescriptor{{Specifier: "https://cdn.example/a@1"}}
	noStar := func(string) bool { return false }

	if kept := Prune(deps, noStar, "// https://cdn.example/a@1 in a comment\n"); len(kept) != 0 {
		t.Errorf("bare substring must not keep a dep: %+v", kept)
	}
	if kept := Prune(deps, noStar, `const s = "https://cdn.example/a@1";`); len(kept) != 1 {
		t.Error("a quoted literal keeps the dep, even a coincidental one")
	}
}

func TestPruneEmptyLedger(t *testing.T) {
	if kept := Prune(nil, func(string) bool { return false }, "code"); len(kept) != 0 {
		t.Errorf("expected empty result, got %+v", kept)
	}
}
