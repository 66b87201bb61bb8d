// Package parser turns source text into the module tree consumed by the
// transform pipeline. Parsing itself is delegated to tree-sitter; this
// package only lifts the specifier-bearing constructs out of the concrete
// syntax tree.
package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
	"github.com/alienzhou/esm.sh/internal/core/errors"
)

// Parse builds the module tree for one source file. A malformed input is a
// fatal PARSE_ERROR carrying the first offending line/column.
func Parse(path string, src []byte, kind source.Kind) (*ast.Module, error) {
	return parseWith(path, src, Grammar(kind))
}

// ParseText rebuilds a module tree from stage output using an explicit
// grammar.
func ParseText(path, text string, lang *sitter.Language) (*ast.Module, error) {
	return parseWith(path, []byte(text), lang)
}

func parseWith(path string, src []byte, lang *sitter.Language) (*ast.Module, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(lang)

	tree := p.Parse(src, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeParse, "parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if bad := firstErrorNode(root); bad != nil {
		pos := bad.StartPosition()
		err := errors.New(errors.CodeParse, fmt.Sprintf("syntax error at %s:%d:%d", path, pos.Row+1, pos.Column+1))
		errors.AddContext(err, errors.CtxPath, path)
		errors.AddContext(err, errors.CtxLine, int(pos.Row)+1)
		errors.AddContext(err, errors.CtxColumn, int(pos.Column)+1)
		return nil, err
	}

	return build(path, src, root), nil
}

// firstErrorNode locates the first ERROR or MISSING node in document order,
// pruning subtrees that parsed cleanly.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil || !node.HasError() {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		if bad := firstErrorNode(node.Child(i)); bad != nil {
			return bad
		}
	}
	return node
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}
