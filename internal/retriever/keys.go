package retriever

import (
	"log/slog"
	"strings"

	"github.com/ziadkadry99/productassist/internal/catalog"
)

// buildExactIndex maps normalized codes and names to document positions.
// Codes are inserted before names, and the first document to claim a key
// keeps it.
func buildExactIndex(docs []catalog.Document, logger *slog.Logger) map[string]int {
	idx := make(map[string]int, 2*len(docs))
	insert := func(field, value string, pos int) {
		key := catalog.NormalizeKey(value)
		if key == "" {
			return
		}
		if prev, ok := idx[key]; ok {
			if prev != pos {
				logger.Warn("duplicate catalog key, keeping first", "field", field, "key", key, "kept", prev, "dropped", pos)
			}
			return
		}
		idx[key] = pos
	}
	for i, d := range docs {
		insert(catalog.FieldCode, d.Code(), i)
	}
	for i, d := range docs {
		insert(catalog.FieldName, d.Name(), i)
	}
	return idx
}

// candidateKeys returns the normalized query followed by every token in it
// that is shaped like a product code.
func candidateKeys(query string) []string {
	norm := catalog.NormalizeKey(query)
	if norm == "" {
		return nil
	}
	keys := []string{norm}
	seen := map[string]bool{norm: true}
	for _, tok := range strings.FieldsFunc(norm, func(c rune) bool { return !isAlnum(c) }) {
		if looksLikeCode(tok) && !seen[tok] {
			seen[tok] = true
			keys = append(keys, tok)
		}
	}
	return keys
}

// looksLikeCode: 5 to 7 letters and digits with at least two of each.
func looksLikeCode(tok string) bool {
	if len(tok) < 5 || len(tok) > 7 {
		return false
	}
	var digits, letters int
	for _, c := range tok {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c >= 'A' && c <= 'Z':
			letters++
		default:
			return false
		}
	}
	return digits >= 2 && letters >= 2
}

func isAlnum(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
