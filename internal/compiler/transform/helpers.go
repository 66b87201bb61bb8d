package transform

import (
	"strings"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
)

// helperSources are the runtime helpers lowering stages can request,
// keyed by canonical name. `@NAME@` is replaced with the collision-free
// binding picked at request time.
var helperSources = map[string]string{
	"__decorate": `var @NAME@ = (this && this.__decorate) || function (decorators, target, key, desc) {
    var c = arguments.length, r = c < 3 ? target : desc === null ? desc = Object.getOwnPropertyDescriptor(target, key) : desc, d;
    for (var i = decorators.length - 1; i >= 0; i--) if (d = decorators[i]) r = (c < 3 ? d(r) : c > 3 ? d(target, key, r) : d(target, key)) || r;
    return c > 3 && r !== void 0 ? Object.defineProperty(target, key, r), r : r;
};`,
}

// injectHelpers prepends the helper bindings earlier lowering stages
// requested through Context.helperName.
func injectHelpers(c *Context, mod *ast.Module) (*ast.Module, error) {
	if len(c.helpers) == 0 {
		return mod, nil
	}

	var prologue strings.Builder
	for _, h := range c.helpers {
		src, ok := helperSources[h.canonical]
		if !ok {
			continue
		}
		prologue.WriteString(strings.ReplaceAll(src, "@NAME@", h.bound))
		prologue.WriteString("\n")
	}
	if prologue.Len() == 0 {
		return mod, nil
	}
	return ast.TextModule(mod.Path, prologue.String()+mod.Print()), nil
}
