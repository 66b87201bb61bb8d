package transform

import (
	"fmt"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/parser"
	"github.com/alienzhou/esm.sh/internal/core/errors"
)

// verifyHygiene is the final structural stage before code generation.
// Bindings injected by helper injection and lowering are renamed away from
// the module scope at injection time (Context.bind); this stage re-collects
// the final module scope and fails the compile if an injected binding still
// collides with anything else, instead of emitting silently broken code.
func verifyHygiene(c *Context, mod *ast.Module) (*ast.Module, error) {
	if len(c.injected) == 0 {
		return mod, nil
	}

	src := []byte(mod.Print())
	tree, err := parseCST(src, parser.JSGrammar())
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	declared := make(map[string]int)
	root := tree.RootNode()
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		perStatement := make(map[string]bool)
		collectStatementBindings(root.Child(i), src, perStatement)
		for name := range perStatement {
			declared[name]++
		}
	}

	for name := range c.injected {
		if declared[name] > 1 {
			return nil, errors.New(errors.CodeStage, fmt.Sprintf("injected binding %q collides with a module-level declaration", name))
		}
	}
	return mod, nil
}
