// Package compiler exposes the whole transform as one call: parse a
// JS/TS/JSX/TSX module, run the staged pipeline, and hand back plain
// JavaScript plus the pruned dependency list.
package compiler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/alienzhou/esm.sh/internal/compiler/parser"
	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
	"github.com/alienzhou/esm.sh/internal/compiler/transform"
	"github.com/alienzhou/esm.sh/internal/core/errors"
	"github.com/alienzhou/esm.sh/internal/shared/observability"
)

// Options re-exports the pipeline emit options.
type Options = transform.Options

// Result is one finished compile.
type Result struct {
	Code      string
	SourceMap string // empty unless requested
	Deps      []resolver.DependencyDescriptor
}

// Compile transforms one module. The resolver instance is owned by this
// compile for its whole duration; callers compiling concurrently must pass
// each compile its own.
func Compile(ctx context.Context, path string, src []byte, kind source.Kind, res *resolver.Resolver, opts Options) (*Result, error) {
	if kind == source.Unknown {
		kind = source.FromPath(path)
	}

	tracer := otel.Tracer("esm.sh/compiler")
	ctx, span := tracer.Start(ctx, "compile")
	span.SetAttributes(
		attribute.String("module.path", path),
		attribute.String("module.kind", kind.String()),
	)
	defer span.End()

	started := time.Now()

	mod, err := parser.Parse(path, src, kind)
	if err != nil {
		observability.ParseErrors.Inc()
		span.RecordError(err)
		return nil, err
	}

	tctx := transform.NewContext(path, kind, opts, res)
	out, err := transform.Run(ctx, tctx, mod)
	if err != nil {
		span.RecordError(err)
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}

	observability.TransformDuration.WithLabelValues(kind.String()).Observe(time.Since(started).Seconds())
	return &Result{Code: out.Code, SourceMap: out.SourceMap, Deps: out.Deps}, nil
}
