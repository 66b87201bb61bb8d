// Package source classifies module paths into the source kinds the
// transform pipeline distinguishes between.
package source

import (
	"path"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	JS
	JSX
	TS
	TSX
)

func (k Kind) String() string {
	switch k {
	case JS:
		return "js"
	case JSX:
		return "jsx"
	case TS:
		return "ts"
	case TSX:
		return "tsx"
	}
	return "unknown"
}

// JSX reports whether the kind carries embedded markup. It gates the
// JSX-to-call lowering stage.
func (k Kind) JSX() bool {
	return k == JSX || k == TSX
}

// JSXCapable reports whether parsing and type stripping must take the
// TSX-capable path. Unknown kinds default to it so ambiguous extensions
// still parse.
func (k Kind) JSXCapable() bool {
	return k == JSX || k == TSX || k == Unknown
}

// FromPath classifies a module path by extension. Query strings and
// fragments on URL-shaped paths are ignored.
func FromPath(p string) Kind {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs", ".cjs":
		return JS
	case ".jsx":
		return JSX
	case ".ts", ".mts", ".cts":
		return TS
	case ".tsx":
		return TSX
	}
	return Unknown
}
