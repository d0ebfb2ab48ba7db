package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput is returned when a model reply does not follow the
// requested format.
var ErrMalformedOutput = errors.New("malformed model output")

// extractTag returns the trimmed text between the first <tag> and the
// following </tag>.
func extractTag(s, tag string) (string, bool) {
	openTag, closeTag := "<"+tag+">", "</"+tag+">"
	start := strings.Index(s, openTag)
	if start < 0 {
		return "", false
	}
	start += len(openTag)
	end := strings.Index(s[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(s[start : start+end]), true
}

// ParseAnswer splits a model reply into its message and product list.
// Both tags are required and the product list must be a JSON array of
// {"product", "code"} objects.
func ParseAnswer(content string) (string, []Product, error) {
	message, ok := extractTag(content, "response")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing <response> block", ErrMalformedOutput)
	}
	raw, ok := extractTag(content, "products")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing <products> block", ErrMalformedOutput)
	}

	products := []Product{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &products); err != nil {
			return "", nil, fmt.Errorf("%w: products: %v", ErrMalformedOutput, err)
		}
	}
	seen := make(map[string]bool, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Code == "" && p.Product == "" {
			return "", nil, fmt.Errorf("%w: product entry without name or code", ErrMalformedOutput)
		}
		key := p.Code + "\x00" + p.Product
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return message, out, nil
}

// ParseAttributes reads the JSON object inside <attributes>. A reply
// without the tags, with empty tags, or with an unparseable body yields
// no attributes; the second return value reports whether the body was
// present but invalid.
func ParseAttributes(content string) (map[string]any, bool) {
	raw, ok := extractTag(content, "attributes")
	if !ok || raw == "" {
		return map[string]any{}, false
	}
	attrs := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return map[string]any{}, true
	}
	return attrs, false
}
