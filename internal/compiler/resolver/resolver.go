// Package resolver holds the resolution authority a compile mutably owns:
// the specifier→URL policy, the dependency ledger, and the star-export set.
package resolver

import (
	"fmt"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/core/errors"
)

type OccurrenceKind string

const (
	OccImport        OccurrenceKind = "import"
	OccExportNamed   OccurrenceKind = "export-named"
	OccExportStar    OccurrenceKind = "export-star"
	OccDynamicImport OccurrenceKind = "dynamic-import"
)

// Occurrence is the syntactic site a dependency was discovered at.
type Occurrence struct {
	Kind OccurrenceKind
	Raw  string // specifier text before resolution
	Loc  ast.Position
}

// DependencyDescriptor is one discovered module dependency, in document
// order.
type DependencyDescriptor struct {
	Specifier  string // resolved URL
	Dynamic    bool
	Occurrence Occurrence
}

// Driver is the pluggable specifier→URL policy. Base is the path or URL of
// the importing module.
type Driver interface {
	Resolve(base, specifier string, dynamic bool) (string, error)
	IsRemote(modulePath string) bool
}

// Resolver accumulates the dependency ledger and star-export set for one
// compile. It is owned exclusively by that compile; concurrent compiles
// each construct their own.
type Resolver struct {
	ModulePath string
	// SpecifierIsRemote records whether the compiled module itself is
	// remote; remote modules are never instrumented for fast refresh.
	SpecifierIsRemote bool

	driver      Driver
	deps        []DependencyDescriptor
	starExports map[string]struct{}
}

func New(modulePath string, driver Driver) *Resolver {
	return &Resolver{
		ModulePath:        modulePath,
		SpecifierIsRemote: driver.IsRemote(modulePath),
		driver:            driver,
		starExports:       make(map[string]struct{}),
	}
}

// Resolve maps one specifier occurrence to its URL and records it in the
// ledger. A driver failure is fatal to the compile.
func (r *Resolver) Resolve(specifier string, dynamic bool, occ Occurrence) (string, error) {
	url, err := r.driver.Resolve(r.ModulePath, specifier, dynamic)
	if err != nil {
		werr := errors.Wrap(err, errors.CodeResolution, fmt.Sprintf("cannot resolve %q", specifier))
		errors.AddContext(werr, errors.CtxSpecifier, specifier)
		errors.AddContext(werr, errors.CtxPath, r.ModulePath)
		errors.AddContext(werr, errors.CtxLine, occ.Loc.Line)
		errors.AddContext(werr, errors.CtxColumn, occ.Loc.Column)
		return "", werr
	}
	r.deps = append(r.deps, DependencyDescriptor{
		Specifier:  url,
		Dynamic:    dynamic,
		Occurrence: occ,
	})
	return url, nil
}

// AddStarExport exempts a resolved specifier from dependency pruning;
// wildcard re-exports do not necessarily keep the literal text alive in the
// emitted code.
func (r *Resolver) AddStarExport(url string) {
	r.starExports[url] = struct{}{}
}

func (r *Resolver) IsStarExport(url string) bool {
	_, ok := r.starExports[url]
	return ok
}

// Deps returns the ledger in discovery order.
func (r *Resolver) Deps() []DependencyDescriptor {
	return r.deps
}

// SetDeps replaces the ledger with its pruned subset after code generation.
func (r *Resolver) SetDeps(deps []DependencyDescriptor) {
	r.deps = deps
}
