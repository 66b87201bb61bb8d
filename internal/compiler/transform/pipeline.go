// Package transform sequences the transform stages into one pipeline: a
// fixed, statically ordered stage list whose enable gates are computed once
// from the module kind and the compile options before anything runs.
package transform

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
	"github.com/alienzhou/esm.sh/internal/core/errors"
	"github.com/alienzhou/esm.sh/internal/shared/observability"
)

// Options are the recognized emit options.
type Options struct {
	// JSXImportSource switches JSX lowering to the automatic runtime and
	// names the runtime import path.
	JSXImportSource    string
	JSXFactory         string // classic-mode call target
	JSXFragmentFactory string // classic-mode fragment target
	DevelopmentMode    bool   // gates fast-refresh instrumentation
	SourceMap          bool
}

func (o *Options) ApplyDefaults() {
	if o.JSXFactory == "" {
		o.JSXFactory = "React.createElement"
	}
	if o.JSXFragmentFactory == "" {
		o.JSXFragmentFactory = "React.Fragment"
	}
}

// Context is the per-compile state threaded through every stage. One
// compile constructs and owns exactly one.
type Context struct {
	Path     string
	Kind     source.Kind
	Options  Options
	Resolver *resolver.Resolver

	scope    map[string]bool // module-level bindings, collected by the scopes stage
	helpers  []helperUse     // runtime helpers requested by lowering stages
	injected map[string]bool // bindings injected by stages
}

type helperUse struct {
	canonical, bound string
}

func NewContext(path string, kind source.Kind, opts Options, res *resolver.Resolver) *Context {
	opts.ApplyDefaults()
	return &Context{
		Path:     path,
		Kind:     kind,
		Options:  opts,
		Resolver: res,
		scope:    make(map[string]bool),
		injected: make(map[string]bool),
	}
}

// helperName reserves the binding a stage should reference a runtime
// helper by. The helper source is injected later by the helpers stage under
// the same name.
func (c *Context) helperName(canonical string) string {
	for _, h := range c.helpers {
		if h.canonical == canonical {
			return h.bound
		}
	}
	bound := c.bind(canonical)
	c.helpers = append(c.helpers, helperUse{canonical: canonical, bound: bound})
	return bound
}

// bind reserves a collision-free name for an injected binding: the
// canonical name when free, otherwise the first numbered variant outside
// the module scope.
func (c *Context) bind(name string) string {
	picked := name
	for i := 1; c.scope[picked] || c.injected[picked]; i++ {
		picked = fmt.Sprintf("%s%d", name, i)
	}
	c.injected[picked] = true
	return picked
}

// Stage is one pipeline entry. Enabled is decided before the pipeline
// executes; the ordering contract lives in Stages and nowhere else.
type Stage struct {
	Name    string
	Enabled bool
	Run     func(*Context, *ast.Module) (*ast.Module, error)
}

// Stages builds the ordered stage list for one compile.
//
// The order is load-bearing: scopes must precede everything so bindings are
// known; the specifier rewrite must see every original import exactly once,
// before any stage that can delete or duplicate one; decorators operate on
// class syntax still in source shape and depend on type annotations, so
// they precede type stripping; helpers supply the bindings decorator
// output references; exactly one strip variant runs; refresh only
// instruments locally owned modules in development; JSX lowering follows
// refresh so registrations see original component names; fixer and hygiene
// close the pipeline unconditionally.
func Stages(c *Context) []Stage {
	jsx := c.Kind.JSX()
	return []Stage{
		{Name: "scopes", Enabled: true, Run: collectScopes},
		{Name: "resolve", Enabled: true, Run: resolveSpecifiers},
		{Name: "decorators", Enabled: true, Run: lowerDecorators},
		{Name: "helpers", Enabled: true, Run: injectHelpers},
		{Name: "strip", Enabled: !c.Kind.JSXCapable(), Run: stripPlain},
		{Name: "strip-jsx", Enabled: c.Kind.JSXCapable(), Run: stripJSX},
		{Name: "refresh", Enabled: c.Options.DevelopmentMode && !c.Resolver.SpecifierIsRemote, Run: instrumentRefresh},
		{Name: "jsx", Enabled: jsx, Run: lowerJSX},
		{Name: "fixer", Enabled: true, Run: fixup},
		{Name: "hygiene", Enabled: true, Run: verifyHygiene},
	}
}

// Result is the pipeline output handed back to the caller.
type Result struct {
	Code      string
	SourceMap string // empty unless requested
	Deps      []resolver.DependencyDescriptor
}

var tracer = otel.Tracer("esm.sh/transform")

// Run executes the pipeline over one module tree: the gated stages in
// order, code generation, then dependency pruning against the emitted
// text. A failure in any stage aborts the whole compile.
func Run(ctx context.Context, c *Context, mod *ast.Module) (*Result, error) {
	for _, st := range Stages(c) {
		if !st.Enabled {
			continue
		}
		_, span := tracer.Start(ctx, "stage."+st.Name)
		span.SetAttributes(attribute.String("module.path", c.Path))
		out, err := st.Run(c, mod)
		if err != nil {
			span.RecordError(err)
			span.End()
			observability.StageErrors.WithLabelValues(st.Name).Inc()
			return nil, stageError(st.Name, err)
		}
		span.End()
		mod = out
	}

	code := mod.Print()

	var srcMap string
	if c.Options.SourceMap {
		srcMap = generateSourceMap(c.Path, code)
	}

	// The resolver is borrowed once more after emission: the ledger is
	// replaced with its pruned subset.
	deps := Prune(c.Resolver.Deps(), c.Resolver.IsStarExport, code)
	observability.DepsPruned.Add(float64(len(c.Resolver.Deps()) - len(deps)))
	c.Resolver.SetDeps(deps)

	return &Result{Code: code, SourceMap: srcMap, Deps: deps}, nil
}

// stageError surfaces a stage failure with the responsible stage named.
// Resolution and parse failures keep their own codes.
func stageError(stage string, err error) error {
	if errors.IsCode(err, errors.CodeResolution) || errors.IsCode(err, errors.CodeParse) {
		return errors.AddContext(err, errors.CtxStage, stage)
	}
	werr := errors.Wrap(err, errors.CodeStage, fmt.Sprintf("stage %s failed", stage))
	return errors.AddContext(werr, errors.CtxStage, stage)
}
