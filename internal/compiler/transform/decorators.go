package transform

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/parser"
)

// lowerDecorators rewrites legacy decorators into __decorate calls emitted
// after the decorated class, in evaluation order: member decorators first,
// then class decorators. It must run while the class syntax is still in its
// source shape, before type stripping.
func lowerDecorators(c *Context, mod *ast.Module) (*ast.Module, error) {
	src := []byte(mod.Print())
	tree, err := parseCST(src, parser.Grammar(c.Kind))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	if !hasDecorators(tree.RootNode()) {
		return mod, nil
	}
	helper := c.helperName("__decorate")

	var edits []edit
	walkClasses(tree.RootNode(), func(class *sitter.Node) {
		edits = append(edits, lowerClass(class, src, helper)...)
	})
	if len(edits) == 0 {
		return mod, nil
	}
	return ast.TextModule(mod.Path, string(applyEdits(src, edits))), nil
}

func hasDecorators(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	if node.Kind() == "decorator" {
		return true
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		if hasDecorators(node.Child(i)) {
			return true
		}
	}
	return false
}

func walkClasses(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "class_declaration", "abstract_class_declaration":
		fn(node)
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		walkClasses(node.Child(i), fn)
	}
}

func lowerClass(class *sitter.Node, src []byte, helper string) []edit {
	nameNode := class.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous default-export classes cannot be referenced by the
		// trailing __decorate statements.
		return nil
	}
	name := nodeText(nameNode, src)

	var edits []edit
	var suffix strings.Builder

	// Decorators may sit on the class node itself or, for decorated
	// exports, on the enclosing export statement.
	stmtEnd := class.EndByte()
	classDecorators := directDecorators(class, src, &edits)
	if parent := class.Parent(); parent != nil && parent.Kind() == "export_statement" {
		classDecorators = append(classDecorators, directDecorators(parent, src, &edits)...)
		stmtEnd = parent.EndByte()
	}

	if body := class.ChildByFieldName("body"); body != nil {
		var pending []string // class_body-level decorators attach to the next member
		count := body.ChildCount()
		for i := uint(0); i < count; i++ {
			member := body.Child(i)
			if member == nil {
				continue
			}
			switch member.Kind() {
			case "decorator":
				pending = append(pending, decoratorExpr(member, src))
				edits = append(edits, edit{start: member.StartByte(), end: member.EndByte()})
			case "method_definition", "public_field_definition", "field_definition":
				decos := append(pending, directDecorators(member, src, &edits)...)
				pending = nil
				if len(decos) == 0 {
					continue
				}
				memberName := member.ChildByFieldName("name")
				if memberName == nil {
					continue
				}
				target := name + ".prototype"
				if hasToken(member, "static") {
					target = name
				}
				desc := "null"
				if member.Kind() != "method_definition" {
					desc = "void 0"
				}
				fmt.Fprintf(&suffix, "\n%s([%s], %s, %q, %s);",
					helper, strings.Join(decos, ", "), target, nodeText(memberName, src), desc)
			}
		}
	}

	if len(classDecorators) > 0 {
		fmt.Fprintf(&suffix, "\n%s = %s([%s], %s);", name, helper, strings.Join(classDecorators, ", "), name)
	}

	if suffix.Len() == 0 {
		return nil
	}
	edits = append(edits, edit{start: stmtEnd, end: stmtEnd, text: suffix.String()})
	return edits
}

// directDecorators collects and erases decorator children of one node,
// returning their expressions.
func directDecorators(node *sitter.Node, src []byte, edits *[]edit) []string {
	var out []string
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil || ch.Kind() != "decorator" {
			continue
		}
		out = append(out, decoratorExpr(ch, src))
		*edits = append(*edits, edit{start: ch.StartByte(), end: ch.EndByte()})
	}
	return out
}

func decoratorExpr(deco *sitter.Node, src []byte) string {
	return strings.TrimSpace(strings.TrimPrefix(nodeText(deco, src), "@"))
}

func hasToken(node *sitter.Node, token string) bool {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		if ch := node.Child(i); ch != nil && ch.Kind() == token {
			return true
		}
	}
	return false
}
