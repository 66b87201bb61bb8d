package transform

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/parser"
)

// removeUnusedImports drops import bindings that are no longer used as
// values once type syntax is erased, and whole import statements when every
// binding is gone. This is what makes post-emission dependency pruning
// observable: an import whose only references were type positions leaves no
// trace in the generated code.
//
// Side-effect imports (`import "x"`) are always kept.
func removeUnusedImports(c *Context, src []byte) ([]byte, error) {
	tree, err := parseCST(src, parser.JSGrammar())
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	root := tree.RootNode()

	counts := make(map[string]int)
	countValueUses(root, src, counts)

	// Classic-runtime JSX keeps its pragma roots alive: the factory calls
	// only appear after JSX lowering, which runs later.
	if c.Kind.JSX() && c.Options.JSXImportSource == "" && containsJSX(root) {
		counts[identifierRoot(c.Options.JSXFactory)]++
		counts[identifierRoot(c.Options.JSXFragmentFactory)]++
	}

	var edits []edit
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		stmt := root.Child(i)
		if stmt == nil || stmt.Kind() != "import_statement" {
			continue
		}
		if e, ok := rebuildImport(stmt, src, counts); ok {
			edits = append(edits, e)
		}
	}
	return applyEdits(src, edits), nil
}

// countValueUses tallies identifier occurrences outside import clauses.
func countValueUses(node *sitter.Node, src []byte, counts map[string]int) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "import_statement":
		return
	case "identifier", "shorthand_property_identifier":
		counts[nodeText(node, src)]++
		return
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		countValueUses(node.Child(i), src, counts)
	}
}

func containsJSX(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "jsx_element", "jsx_self_closing_element":
		return true
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		if containsJSX(node.Child(i)) {
			return true
		}
	}
	return false
}

func identifierRoot(expr string) string {
	if i := strings.IndexByte(expr, '.'); i >= 0 {
		return expr[:i]
	}
	return expr
}

// rebuildImport returns the edit replacing one import statement with its
// used subset, or removing it entirely. ok is false when nothing changed.
func rebuildImport(stmt *sitter.Node, src []byte, counts map[string]int) (edit, bool) {
	clause := importClause(stmt)
	if clause == nil {
		// Side-effect import.
		return edit{}, false
	}
	srcNode := stmt.ChildByFieldName("source")
	if srcNode == nil {
		return edit{}, false
	}

	var kept []string
	dropped := false
	inner := clause.NamedChildCount()
	for i := uint(0); i < inner; i++ {
		item := clause.NamedChild(i)
		switch item.Kind() {
		case "identifier":
			if counts[nodeText(item, src)] > 0 {
				kept = append(kept, nodeText(item, src))
			} else {
				dropped = true
			}
		case "namespace_import":
			name := namespaceName(item, src)
			if name != "" && counts[name] > 0 {
				kept = append(kept, nodeText(item, src))
			} else {
				dropped = true
			}
		case "named_imports":
			specs, anyDropped := keptSpecifiers(item, src, counts)
			if anyDropped || len(specs) == 0 {
				// An emptied specifier list leaves no binding behind;
				// the statement must not degrade into a side-effect
				// import.
				dropped = true
			}
			if len(specs) > 0 {
				kept = append(kept, "{ "+strings.Join(specs, ", ")+" }")
			}
		}
	}

	if !dropped {
		return edit{}, false
	}
	if len(kept) == 0 {
		return edit{start: stmt.StartByte(), end: stmt.EndByte()}, true
	}
	text := "import " + strings.Join(kept, ", ") + " from " + nodeText(srcNode, src) + ";"
	return edit{start: stmt.StartByte(), end: stmt.EndByte(), text: text}, true
}

func importClause(stmt *sitter.Node) *sitter.Node {
	count := stmt.ChildCount()
	for i := uint(0); i < count; i++ {
		if ch := stmt.Child(i); ch != nil && ch.Kind() == "import_clause" {
			return ch
		}
	}
	return nil
}

func namespaceName(item *sitter.Node, src []byte) string {
	count := item.NamedChildCount()
	for i := uint(0); i < count; i++ {
		if id := item.NamedChild(i); id.Kind() == "identifier" {
			return nodeText(id, src)
		}
	}
	return ""
}

// keptSpecifiers filters one named-import list, dropping type-only
// specifiers and bindings without value uses.
func keptSpecifiers(namedImports *sitter.Node, src []byte, counts map[string]int) ([]string, bool) {
	var kept []string
	dropped := false
	count := namedImports.NamedChildCount()
	for i := uint(0); i < count; i++ {
		spec := namedImports.NamedChild(i)
		if spec.Kind() != "import_specifier" {
			continue
		}
		if hasTypeToken(spec) {
			dropped = true
			continue
		}
		bound := spec.ChildByFieldName("alias")
		if bound == nil {
			bound = spec.ChildByFieldName("name")
		}
		if bound != nil && counts[nodeText(bound, src)] > 0 {
			kept = append(kept, nodeText(spec, src))
		} else {
			dropped = true
		}
	}
	return kept, dropped
}
