package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/alienzhou/esm.sh/internal/compiler/source"
)

var (
	javascript = sitter.NewLanguage(tree_sitter_javascript.Language())
	typescript = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	tsx        = sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
)

// Grammar selects the tree-sitter grammar for a source kind. The javascript
// grammar covers JSX; unknown kinds take the TSX-capable grammar so
// ambiguous extensions still parse.
func Grammar(kind source.Kind) *sitter.Language {
	switch kind {
	case source.JS, source.JSX:
		return javascript
	case source.TS:
		return typescript
	default:
		return tsx
	}
}

// JSGrammar is the grammar for plain JavaScript (with JSX) text. Stages
// that run after type stripping reparse with it.
func JSGrammar() *sitter.Language {
	return javascript
}

// StripGrammar is the grammar a type-strip variant parses with: the plain
// TypeScript grammar, or the TSX one for markup-capable kinds.
func StripGrammar(jsxCapable bool) *sitter.Language {
	if jsxCapable {
		return tsx
	}
	return typescript
}
