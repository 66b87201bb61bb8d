package transform

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/parser"
)

// stripPlain and stripJSX are the two mutually exclusive type-strip
// variants; exactly one runs per compile. They differ only in grammar: the
// plain TypeScript grammar reads `<T>x` as a cast, the TSX one as markup.
func stripPlain(c *Context, mod *ast.Module) (*ast.Module, error) {
	return stripTypes(c, mod, false)
}

func stripJSX(c *Context, mod *ast.Module) (*ast.Module, error) {
	return stripTypes(c, mod, true)
}

func stripTypes(c *Context, mod *ast.Module, jsxCapable bool) (*ast.Module, error) {
	src := []byte(mod.Print())
	tree, err := parseCST(src, parser.StripGrammar(jsxCapable))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var edits []edit
	collectEraseEdits(tree.RootNode(), src, &edits)
	erased := applyEdits(src, edits)

	pruned, err := removeUnusedImports(c, erased)
	if err != nil {
		return nil, err
	}
	return ast.TextModule(mod.Path, string(pruned)), nil
}

// collectEraseEdits walks the typed tree and erases every construct with no
// runtime meaning. Nested edits inside an erased span are dropped when
// applied.
func collectEraseEdits(node *sitter.Node, src []byte, edits *[]edit) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "type_annotation", "type_parameters", "type_arguments",
		"type_alias_declaration", "interface_declaration", "ambient_declaration",
		"function_signature", "method_signature", "abstract_method_signature",
		"implements_clause", "index_signature":
		*edits = append(*edits, edit{start: node.StartByte(), end: node.EndByte()})
		return

	case "as_expression", "satisfies_expression", "non_null_expression":
		// Keep the wrapped expression, drop the assertion.
		if expr := node.NamedChild(0); expr != nil {
			*edits = append(*edits, edit{start: expr.EndByte(), end: node.EndByte()})
			collectEraseEdits(expr, src, edits)
		}
		return

	case "accessibility_modifier", "override_modifier":
		*edits = append(*edits, edit{start: node.StartByte(), end: node.EndByte()})
		return

	case "abstract_class_declaration":
		eraseTokens(node, edits, "abstract")

	case "public_field_definition":
		eraseTokens(node, edits, "readonly", "declare", "abstract", "?", "!")

	case "optional_parameter":
		eraseTokens(node, edits, "?")

	case "required_parameter":
		// `function f(this: T, x)` keeps a bare `this` after annotation
		// removal; drop the whole parameter and its separating comma.
		if pattern := node.ChildByFieldName("pattern"); pattern != nil && pattern.Kind() == "this" {
			end := node.EndByte()
			if sib := node.NextSibling(); sib != nil && sib.Kind() == "," {
				end = sib.EndByte()
			}
			*edits = append(*edits, edit{start: node.StartByte(), end: end})
			return
		}

	case "variable_declarator":
		eraseTokens(node, edits, "!")

	case "enum_declaration":
		*edits = append(*edits, edit{
			start: node.StartByte(),
			end:   node.EndByte(),
			text:  lowerEnum(node, src),
		})
		return

	case "import_statement", "export_statement":
		if hasTypeToken(node) {
			*edits = append(*edits, edit{start: node.StartByte(), end: node.EndByte()})
			return
		}

	case "import_specifier", "export_specifier":
		// Inline `type` specifiers must be erased here while the typed
		// grammar still parses them; the later unused-import pass reads
		// plain JavaScript.
		if hasTypeToken(node) {
			start, end := node.StartByte(), node.EndByte()
			if sib := node.NextSibling(); sib != nil && sib.Kind() == "," {
				end = sib.EndByte()
			} else if sib := node.PrevSibling(); sib != nil && sib.Kind() == "," {
				start = sib.StartByte()
			}
			*edits = append(*edits, edit{start: start, end: end})
			return
		}
	}

	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		collectEraseEdits(node.Child(i), src, edits)
	}
}

func eraseTokens(node *sitter.Node, edits *[]edit, kinds ...string) {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil {
			continue
		}
		for _, k := range kinds {
			if ch.Kind() == k {
				*edits = append(*edits, edit{start: ch.StartByte(), end: ch.EndByte()})
			}
		}
	}
}

// hasTypeToken detects statement-level type-only imports/exports by the
// `type` keyword before the clause.
func hasTypeToken(node *sitter.Node) bool {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil {
			continue
		}
		switch ch.Kind() {
		case "type":
			return true
		case "import_clause", "export_clause", "namespace_export", "string", "identifier", "*":
			return false
		}
	}
	return false
}

// lowerEnum emits the classic IIFE lowering for a TypeScript enum.
func lowerEnum(node *sitter.Node, src []byte) string {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return ""
	}
	name := nodeText(nameNode, src)

	var b strings.Builder
	fmt.Fprintf(&b, "var %s;\n(function (%s) {\n", name, name)

	counter := 0
	count := body.NamedChildCount()
	for i := uint(0); i < count; i++ {
		member := body.NamedChild(i)
		var key, value string
		switch member.Kind() {
		case "enum_assignment":
			key = enumKey(member.ChildByFieldName("name"), src)
			value = nodeText(member.ChildByFieldName("value"), src)
		case "property_identifier", "string":
			key = enumKey(member, src)
		default:
			continue
		}
		if key == "" {
			continue
		}
		switch {
		case value == "":
			fmt.Fprintf(&b, "    %s[%s[%s] = %d] = %s;\n", name, name, key, counter, key)
			counter++
		case isStringLiteral(value):
			fmt.Fprintf(&b, "    %s[%s] = %s;\n", name, key, value)
		default:
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				counter = n + 1
			}
			fmt.Fprintf(&b, "    %s[%s[%s] = %s] = %s;\n", name, name, key, strings.TrimSpace(value), key)
		}
	}
	fmt.Fprintf(&b, "})(%s || (%s = {}));", name, name)
	return b.String()
}

func enumKey(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	text := nodeText(node, src)
	if node.Kind() == "string" {
		return text
	}
	return strconv.Quote(text)
}

func isStringLiteral(value string) bool {
	value = strings.TrimSpace(value)
	return len(value) >= 2 && (value[0] == '"' || value[0] == '\'' || value[0] == '`')
}
