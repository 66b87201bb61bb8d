package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
)

// build lifts every specifier occurrence out of the concrete syntax tree
// and stitches the rest of the source into verbatim text runs. Occurrences
// are collected pre-order, so the resulting spans are sorted and disjoint.
func build(path string, src []byte, root *sitter.Node) *ast.Module {
	var nodes []spanned
	collect(root, src, &nodes)

	body := make([]ast.Node, 0, len(nodes)*2+1)
	cursor := uint(0)
	for _, sn := range nodes {
		if sn.start > cursor {
			body = append(body, &ast.Text{Value: string(src[cursor:sn.start])})
		}
		body = append(body, sn.node)
		cursor = sn.end
	}
	if int(cursor) < len(src) {
		body = append(body, &ast.Text{Value: string(src[cursor:])})
	}

	return &ast.Module{Path: path, Body: body}
}

type spanned struct {
	start, end uint
	node       ast.Node
}

func collect(node *sitter.Node, src []byte, out *[]spanned) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "import_statement":
		srcNode := node.ChildByFieldName("source")
		if srcNode == nil {
			return
		}
		*out = append(*out, spanned{
			start: node.StartByte(),
			end:   node.EndByte(),
			node: &ast.ImportDecl{
				Clause:   string(src[node.StartByte():srcNode.StartByte()]),
				Source:   cookStr(srcNode, src),
				Trailer:  string(src[srcNode.EndByte():node.EndByte()]),
				TypeOnly: hasTypeKeyword(node),
				Loc:      position(node),
			},
		})
		return

	case "export_statement":
		srcNode := node.ChildByFieldName("source")
		if srcNode == nil {
			// No source module; may still contain dynamic imports in the
			// exported expression.
			break
		}
		sn := spanned{start: node.StartByte(), end: node.EndByte()}
		clause := string(src[node.StartByte():srcNode.StartByte()])
		trailer := string(src[srcNode.EndByte():node.EndByte()])
		if isWildcardExport(node) {
			sn.node = &ast.ExportStar{
				Clause:  clause,
				Source:  cookStr(srcNode, src),
				Trailer: trailer,
				Loc:     position(node),
			}
		} else {
			sn.node = &ast.ExportFrom{
				Clause:   clause,
				Source:   cookStr(srcNode, src),
				Trailer:  trailer,
				TypeOnly: hasTypeKeyword(node),
				Loc:      position(node),
			}
		}
		*out = append(*out, sn)
		return

	case "call_expression":
		if di := dynamicImport(node, src); di != nil {
			*out = append(*out, *di)
			return
		}
	}

	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		collect(node.Child(i), src, out)
	}
}

// dynamicImport matches a call whose callee is the bare `import` keyword
// with a literal-string first argument. Any other shape returns nil and the
// caller keeps walking, so eligible calls nested inside a computed argument
// are still found.
func dynamicImport(node *sitter.Node, src []byte) *spanned {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "import" {
		return nil
	}
	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	first := args.NamedChild(0)
	if first.Kind() != "string" {
		return nil
	}

	end := node.EndByte()
	return &spanned{
		start: node.StartByte(),
		end:   end,
		node: &ast.DynamicImport{
			Pre:  string(src[node.StartByte():first.StartByte()]),
			Arg:  cookStr(first, src),
			Rest: string(src[first.EndByte() : end-1]),
			Post: ")",
			Loc:  position(node),
		},
	}
}

// hasTypeKeyword detects the statement-level `type` marker of type-only
// imports/exports. Specifier-level markers (`import { type A }`) do not
// make the whole statement type-only.
func hasTypeKeyword(node *sitter.Node) bool {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil {
			continue
		}
		switch ch.Kind() {
		case "type":
			return true
		case "import_clause", "export_clause", "namespace_export", "namespace_import", "string", "identifier":
			// Past the keyword position.
			return false
		}
	}
	return false
}

func isWildcardExport(node *sitter.Node) bool {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil {
			continue
		}
		switch ch.Kind() {
		case "*":
			return true
		case "namespace_export", "export_clause":
			return false
		}
	}
	return false
}

func cookStr(node *sitter.Node, src []byte) *ast.Str {
	raw := nodeText(node, src)
	return &ast.Str{Raw: raw, Value: cookValue(raw)}
}

// cookValue strips the quotes and decodes the escape sequences that
// plausibly appear in module specifiers.
func cookValue(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	inner := raw[1 : len(raw)-1]
	if !strings.ContainsRune(inner, '\\') {
		return inner
	}
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' || i+1 == len(inner) {
			b.WriteByte(c)
			continue
		}
		i++
		switch inner[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(inner[i])
		}
	}
	return b.String()
}

func position(node *sitter.Node) ast.Position {
	pos := node.StartPosition()
	return ast.Position{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
}
