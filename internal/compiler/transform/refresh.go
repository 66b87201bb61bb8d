package transform

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/parser"
)

// instrumentRefresh registers module-level components with the fast-refresh
// runtime. It only ever runs for locally owned modules in development mode;
// remote module content is not under the serving system's control and any
// instrumentation would be discarded on the next fetch.
func instrumentRefresh(c *Context, mod *ast.Module) (*ast.Module, error) {
	src := []byte(mod.Print())
	tree, err := parseCST(src, parser.JSGrammar())
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	components := topLevelComponents(tree.RootNode(), src)
	if len(components) == 0 {
		return mod, nil
	}

	var footer strings.Builder
	footer.WriteString("\nif (typeof $RefreshReg$ === \"function\") {\n")
	for _, name := range components {
		fmt.Fprintf(&footer, "  $RefreshReg$(%s, %q);\n", name, name)
	}
	footer.WriteString("}\n")
	return ast.TextModule(mod.Path, string(src)+footer.String()), nil
}

// topLevelComponents finds module-level capitalized function bindings, the
// shapes the refresh runtime can re-register.
func topLevelComponents(root *sitter.Node, src []byte) []string {
	var out []string
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		stmt := root.Child(i)
		if stmt == nil {
			continue
		}
		if stmt.Kind() == "export_statement" {
			if decl := stmt.ChildByFieldName("declaration"); decl != nil {
				stmt = decl
			}
		}
		switch stmt.Kind() {
		case "function_declaration":
			if name := nodeText(stmt.ChildByFieldName("name"), src); isComponentName(name) {
				out = append(out, name)
			}
		case "lexical_declaration", "variable_declaration":
			inner := stmt.NamedChildCount()
			for j := uint(0); j < inner; j++ {
				decl := stmt.NamedChild(j)
				if decl.Kind() != "variable_declarator" {
					continue
				}
				value := decl.ChildByFieldName("value")
				if value == nil {
					continue
				}
				switch value.Kind() {
				case "arrow_function", "function_expression", "function":
					if name := nodeText(decl.ChildByFieldName("name"), src); isComponentName(name) {
						out = append(out, name)
					}
				}
			}
		}
	}
	return out
}

func isComponentName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && unicode.IsUpper(r)
}
