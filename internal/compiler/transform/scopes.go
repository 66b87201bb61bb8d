package transform

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/parser"
)

// collectScopes records every module-level binding so later stages can
// inject helper bindings without shadowing or colliding with user code.
func collectScopes(c *Context, mod *ast.Module) (*ast.Module, error) {
	src := []byte(mod.Print())
	tree, err := parseCST(src, parser.Grammar(c.Kind))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		collectStatementBindings(root.Child(i), src, c.scope)
	}
	return mod, nil
}

func collectStatementBindings(node *sitter.Node, src []byte, scope map[string]bool) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "export_statement":
		collectStatementBindings(node.ChildByFieldName("declaration"), src, scope)

	case "lexical_declaration", "variable_declaration":
		count := node.NamedChildCount()
		for i := uint(0); i < count; i++ {
			ch := node.NamedChild(i)
			if ch.Kind() == "variable_declarator" {
				collectPatternBindings(ch.ChildByFieldName("name"), src, scope)
			}
		}

	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration", "interface_declaration",
		"type_alias_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			scope[nodeText(name, src)] = true
		}

	case "import_statement":
		collectImportBindings(node, src, scope)
	}
}

func collectPatternBindings(node *sitter.Node, src []byte, scope map[string]bool) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		scope[nodeText(node, src)] = true
	default:
		count := node.NamedChildCount()
		for i := uint(0); i < count; i++ {
			collectPatternBindings(node.NamedChild(i), src, scope)
		}
	}
}

func collectImportBindings(node *sitter.Node, src []byte, scope map[string]bool) {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil || ch.Kind() != "import_clause" {
			continue
		}
		inner := ch.NamedChildCount()
		for j := uint(0); j < inner; j++ {
			item := ch.NamedChild(j)
			switch item.Kind() {
			case "identifier":
				scope[nodeText(item, src)] = true
			case "namespace_import":
				last := item.NamedChildCount()
				for k := uint(0); k < last; k++ {
					if id := item.NamedChild(k); id.Kind() == "identifier" {
						scope[nodeText(id, src)] = true
					}
				}
			case "named_imports":
				specs := item.NamedChildCount()
				for k := uint(0); k < specs; k++ {
					spec := item.NamedChild(k)
					if spec.Kind() != "import_specifier" {
						continue
					}
					bound := spec.ChildByFieldName("alias")
					if bound == nil {
						bound = spec.ChildByFieldName("name")
					}
					if bound != nil {
						scope[nodeText(bound, src)] = true
					}
				}
			}
		}
	}
}
