package transform

import (
	"strings"

	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
)

// Prune drops ledger entries whose resolved specifier no longer survives in
// the emitted code. Later stages can remove the only statement referencing
// an import, so a specifier discovered during rewriting may be textually
// gone by emission time.
//
// An entry is kept iff it is star-exported or the emitted text contains the
// specifier as a double-quoted literal. The substring check is a deliberate
// approximation: a coincidental string literal with the same text keeps a
// dead dependency alive.
func Prune(deps []resolver.DependencyDescriptor, isStarExport func(string) bool, code string) []resolver.DependencyDescriptor {
	kept := make([]resolver.DependencyDescriptor, 0, len(deps))
	for _, dep := range deps {
		if isStarExport(dep.Specifier) || strings.Contains(code, `"`+dep.Specifier+`"`) {
			kept = append(kept, dep)
		}
	}
	return kept
}
