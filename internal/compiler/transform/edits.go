package transform

import (
	"sort"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/core/errors"
)

// edit replaces the byte range [start, end) with text.
type edit struct {
	start, end uint
	text       string
}

// applyEdits splices a sorted-by-start edit list into src. An edit nested
// inside an already-applied one is dropped; the outer replacement covers it.
func applyEdits(src []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return src
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	out := make([]byte, 0, len(src))
	cursor := uint(0)
	for _, e := range edits {
		if e.start < cursor {
			continue
		}
		out = append(out, src[cursor:e.start]...)
		out = append(out, e.text...)
		cursor = e.end
	}
	out = append(out, src[cursor:]...)
	return out
}

// parseCST parses stage text for structural inspection. The caller must
// Close the returned tree.
func parseCST(src []byte, lang *sitter.Language) (*sitter.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(lang)
	tree := p.Parse(src, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "stage reparse failed")
	}
	return tree, nil
}

func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return string(src[node.StartByte():node.EndByte()])
}
