package resolver

import (
	"fmt"
	"testing"

	"github.com/alienzhou/esm.sh/internal/core/errors"
)

type staticDriver struct {
	urls   map[string]string
	remote bool
}

func (d *staticDriver) Resolve(base, specifier string, dynamic bool) (string, error) {
	if url, ok := d.urls[specifier]; ok {
		return url, nil
	}
	return "", fmt.Errorf("unknown specifier %q", specifier)
}

func (d *staticDriver) IsRemote(modulePath string) bool { return d.remote }

func TestResolverLedger(t *testing.T) {
	r := New("/src/app.ts", &staticDriver{urls: map[string]string{
		"react": "https://cdn.example/react@18",
		"lazy":  "https://cdn.example/lazy@1",
	}})

	if _, err := r.Resolve("react", false, Occurrence{Kind: OccImport, Raw: "react"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve("lazy", true, Occurrence{Kind: OccDynamicImport, Raw: "lazy"}); err != nil {
		t.Fatal(err)
	}

	deps := r.Deps()
	if len(deps) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(deps))
	}
	if deps[0].Specifier != "https://cdn.example/react@18" || deps[0].Dynamic {
		t.Errorf("unexpected first entry: %+v", deps[0])
	}
	if deps[1].Specifier != "https://cdn.example/lazy@1" || !deps[1].Dynamic {
		t.Errorf("unexpected second entry: %+v", deps[1])
	}
}

func TestResolverFailureIsResolutionError(t *testing.T) {
	r := New("/src/app.ts", &staticDriver{})
	_, err := r.Resolve("ghost", false, Occurrence{Kind: OccImport, Raw: "ghost"})
	if err == nil {
		t.Fatal("expected resolution error")
	}
	if !errors.IsCode(err, errors.CodeResolution) {
		t.Errorf("expected RESOLUTION_ERROR, got %v", err)
	}
	if len(r.Deps()) != 0 {
		t.Error("failed resolution must not be recorded in the ledger")
	}
}

func TestStarExports(t *testing.T) {
	r := New("/src/app.ts", &staticDriver{})
	r.AddStarExport("https://cdn.example/star@1")
	if !r.IsStarExport("https://cdn.example/star@1") {
		t.Error("expected star export membership")
	}
	if r.IsStarExport("https://cdn.example/other@1") {
		t.Error("unexpected star export membership")
	}
}

func TestImportMapResolve(t *testing.T) {
	m, err := NewImportMap(
		"https://cdn.esm.sh",
		"https://app.local",
		map[string]string{"alias": "https://cdn.esm.sh/actual@2"},
		map[string]string{"react": "18.2.0", "@scope/pkg": "1.0.0"},
		[]string{"node:*"},
	)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		base, spec, want string
	}{
		{"/src/app.ts", "react", "https://cdn.esm.sh/react@18.2.0"},
		{"/src/app.ts", "react/jsx-runtime", "https://cdn.esm.sh/react@18.2.0/jsx-runtime"},
		{"/src/app.ts", "@scope/pkg/sub", "https://cdn.esm.sh/@scope/pkg@1.0.0/sub"},
		{"/src/app.ts", "unpinned", "https://cdn.esm.sh/unpinned"},
		{"/src/app.ts", "alias", "https://cdn.esm.sh/actual@2"},
		{"/src/app.ts", "node:fs", "node:fs"},
		{"/src/app.ts", "https://other.cdn/x.js", "https://other.cdn/x.js"},
		{"/src/pages/index.ts", "./util", "https://app.local/src/pages/util"},
		{"/src/pages/index.ts", "../lib/a.ts", "https://app.local/src/lib/a.ts"},
		{"/src/app.ts", "/vendor/d.js", "https://app.local/vendor/d.js"},
		{"https://cdn.esm.sh/pkg@1/index.js", "./dep.js", "https://cdn.esm.sh/pkg@1/dep.js"},
	}
	for _, tc := range cases {
		got, err := m.Resolve(tc.base, tc.spec, false)
		if err != nil {
			t.Errorf("Resolve(%q, %q): %v", tc.base, tc.spec, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tc.base, tc.spec, got, tc.want)
		}
	}
}

func TestImportMapRemote(t *testing.T) {
	m, err := NewImportMap("https://cdn.esm.sh", "https://app.local", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.IsRemote("/src/app.ts") {
		t.Error("path-like modules are local")
	}
	if m.IsRemote("https://app.local/src/app.ts") {
		t.Error("local-origin modules are local")
	}
	if !m.IsRemote("https://cdn.esm.sh/react@18/index.js") {
		t.Error("CDN modules are remote")
	}
}

func TestImportMapBareWithoutCDN(t *testing.T) {
	m, err := NewImportMap("", "", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Resolve("/src/app.ts", "react", false); err == nil {
		t.Error("bare specifier without a CDN origin must fail")
	}
}
