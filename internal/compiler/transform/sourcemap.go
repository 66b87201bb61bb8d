package transform

import (
	"encoding/json"
	"strings"
)

// generateSourceMap emits a line-granular V3 source map for the generated
// code. The transform stages splice text rather than reprint a positioned
// tree, so each output line maps to the same-numbered input line; that is
// coarse, but enough for the browser to attribute errors to the served
// module.
func generateSourceMap(path, code string) string {
	lineCount := strings.Count(code, "\n")
	if !strings.HasSuffix(code, "\n") {
		lineCount++
	}

	var mappings strings.Builder
	for i := 0; i < lineCount; i++ {
		if i == 0 {
			// generated col 0, source 0, line 0, col 0
			mappings.WriteString("AAAA")
			continue
		}
		mappings.WriteByte(';')
		mappings.WriteString(encodeVLQ(0))
		mappings.WriteString(encodeVLQ(0))
		mappings.WriteString(encodeVLQ(1)) // +1 original line
		mappings.WriteString(encodeVLQ(0))
	}

	out, _ := json.Marshal(map[string]interface{}{
		"version":  3,
		"sources":  []string{path},
		"names":    []string{},
		"mappings": mappings.String(),
	})
	return string(out)
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// encodeVLQ encodes one value in the base64 VLQ variant source maps use.
func encodeVLQ(value int) string {
	vlq := value << 1
	if value < 0 {
		vlq = (-value << 1) | 1
	}
	var b strings.Builder
	for {
		digit := vlq & 0x1f
		vlq >>= 5
		if vlq > 0 {
			digit |= 0x20
		}
		b.WriteByte(base64Chars[digit])
		if vlq == 0 {
			return b.String()
		}
	}
}
