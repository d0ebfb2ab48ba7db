package retriever

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ziadkadry99/productassist/internal/catalog"
)

// FormatMatches renders matches as plain text for the CLI and MCP tools.
func FormatMatches(matches []Match) string {
	if len(matches) == 0 {
		return "No products found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d product(s):\n\n", len(matches))
	for i, m := range matches {
		how := fmt.Sprintf("similarity: %.4f", m.Similarity)
		if m.Exact {
			how = "exact match"
		}
		fmt.Fprintf(&sb, "--- %d. %s (%s) ---\n", i+1, m.Document.Code(), how)
		fmt.Fprintf(&sb, "Name: %s\n", m.Document.Name())
		if p := m.Document.Fields[catalog.FieldPrice]; p != "" {
			fmt.Fprintf(&sb, "Price: %s\n", p)
		}
		if d := m.Document.Fields[catalog.FieldDescription]; d != "" {
			fmt.Fprintf(&sb, "Description: %s\n", d)
		}
		for _, k := range extraFields(m.Document) {
			fmt.Fprintf(&sb, "%s: %s\n", k, m.Document.Fields[k])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func extraFields(d catalog.Document) []string {
	var keys []string
	for k, v := range d.Fields {
		switch k {
		case catalog.FieldCode, catalog.FieldName, catalog.FieldPrice, catalog.FieldDescription:
			continue
		}
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
