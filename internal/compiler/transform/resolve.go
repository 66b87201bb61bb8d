package transform

import (
	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/rewrite"
	"github.com/alienzhou/esm.sh/internal/shared/observability"
)

// resolveSpecifiers is the specifier-rewriting stage. It runs before any
// stage that could delete or duplicate an import so every original
// specifier is seen exactly once.
func resolveSpecifiers(c *Context, mod *ast.Module) (*ast.Module, error) {
	out, err := rewrite.Apply(mod, c.Resolver)
	if err != nil {
		return nil, err
	}
	observability.ResolveCalls.Add(float64(len(c.Resolver.Deps())))
	return out, nil
}
