// Package rewrite implements the specifier extraction/rewriting walk: every
// eligible import/export occurrence is replaced by its resolved URL and
// recorded in the resolution authority's ledger.
package rewrite

import (
	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
)

// Apply walks the module tree pre-order and returns a new tree with every
// eligible specifier resolved. Type-only occurrences pass through without a
// resolve call. The first resolution failure aborts; no partially rewritten
// tree is returned.
func Apply(mod *ast.Module, res *resolver.Resolver) (*ast.Module, error) {
	body := make([]ast.Node, len(mod.Body))
	for i, n := range mod.Body {
		out, err := rewriteNode(n, res)
		if err != nil {
			return nil, err
		}
		body[i] = out
	}
	return &ast.Module{Path: mod.Path, Body: body}, nil
}

func rewriteNode(n ast.Node, res *resolver.Resolver) (ast.Node, error) {
	switch n := n.(type) {
	case *ast.ImportDecl:
		if n.TypeOnly {
			return n, nil
		}
		url, err := res.Resolve(n.Source.Value, false, resolver.Occurrence{
			Kind: resolver.OccImport,
			Raw:  n.Source.Value,
			Loc:  n.Loc,
		})
		if err != nil {
			return nil, err
		}
		return &ast.ImportDecl{
			Clause:  n.Clause,
			Source:  ast.NewStr(url),
			Trailer: n.Trailer,
			Loc:     n.Loc,
		}, nil

	case *ast.ExportFrom:
		if n.TypeOnly {
			return n, nil
		}
		url, err := res.Resolve(n.Source.Value, false, resolver.Occurrence{
			Kind: resolver.OccExportNamed,
			Raw:  n.Source.Value,
			Loc:  n.Loc,
		})
		if err != nil {
			return nil, err
		}
		return &ast.ExportFrom{
			Clause:  n.Clause,
			Source:  ast.NewStr(url),
			Trailer: n.Trailer,
			Loc:     n.Loc,
		}, nil

	case *ast.ExportStar:
		url, err := res.Resolve(n.Source.Value, false, resolver.Occurrence{
			Kind: resolver.OccExportStar,
			Raw:  n.Source.Value,
			Loc:  n.Loc,
		})
		if err != nil {
			return nil, err
		}
		res.AddStarExport(url)
		return &ast.ExportStar{
			Clause:  n.Clause,
			Source:  ast.NewStr(url),
			Trailer: n.Trailer,
			Loc:     n.Loc,
		}, nil

	case *ast.DynamicImport:
		url, err := res.Resolve(n.Arg.Value, true, resolver.Occurrence{
			Kind: resolver.OccDynamicImport,
			Raw:  n.Arg.Value,
			Loc:  n.Loc,
		})
		if err != nil {
			return nil, err
		}
		// Extra arguments to the pseudo-import call are dropped.
		return &ast.DynamicImport{
			Pre:  n.Pre,
			Arg:  ast.NewStr(url),
			Post: n.Post,
			Loc:  n.Loc,
		}, nil

	default:
		return n, nil
	}
}
