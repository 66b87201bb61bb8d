package transform

import (
	"strings"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
)

// fixup normalizes cosmetic damage left by the structural stages: erased
// spans leave trailing whitespace and runs of blank lines behind. It always
// runs, after every structural stage.
func fixup(c *Context, mod *ast.Module) (*ast.Module, error) {
	lines := strings.Split(mod.Print(), "\n")

	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	// Exactly one trailing newline.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	text := strings.Join(out, "\n")
	if text != "" {
		text += "\n"
	}
	return ast.TextModule(mod.Path, text), nil
}
