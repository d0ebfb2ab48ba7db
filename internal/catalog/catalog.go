// Package catalog loads product records from CSV or JSON files and turns
// them into the normalized documents the search index is built from.
package catalog

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/productassist/internal/logging"
)

// Well-known fields. Code and Name are required; Code is the unique key.
const (
	FieldCode        = "Code"
	FieldName        = "Name"
	FieldBrand       = "Brand"
	FieldPrice       = "Price"
	FieldDescription = "Description"
)

// ErrNoFiles is returned when no catalog path or glob matches a file.
var ErrNoFiles = errors.New("no catalog files matched")

// Document is one indexed catalog entry.
type Document struct {
	Text   string
	Fields map[string]string
}

// Code returns the document's unique key.
func (d Document) Code() string { return d.Fields[FieldCode] }

// Name returns the document's product name.
func (d Document) Name() string { return d.Fields[FieldName] }

// Catalog is the ordered set of documents loaded from one or more files.
// A document's position is its identity in every index built from it.
type Catalog struct {
	Documents []Document
	Files     []string
	digest    []byte
}

// Hash identifies this catalog content as embedded by model. Index
// artifacts are named after it, so changing either the files or the model
// invalidates them.
func (c *Catalog) Hash(model string) string {
	h := sha256.New()
	h.Write(c.digest)
	h.Write([]byte{0})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Load reads every file matched by patterns. Patterns may be plain paths
// or doublestar globs. Files are read in sorted order so document
// positions are stable between runs.
func Load(patterns []string) (*Catalog, error) {
	files, err := expand(patterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, strings.Join(patterns, ", "))
	}

	logger := logging.WithComponent("catalog")
	c := &Catalog{Files: files}
	h := sha256.New()
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading catalog %s: %w", path, err)
		}
		h.Write([]byte(filepath.Base(path)))
		h.Write(data)

		records, err := parse(path, data)
		if err != nil {
			return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
		}
		for _, r := range records {
			c.Documents = append(c.Documents, NewDocument(r))
		}
		logger.Debug("catalog file loaded", "path", path, "records", len(records))
	}
	c.digest = h.Sum(nil)
	logger.Info("catalog loaded", "files", len(files), "documents", len(c.Documents))
	return c, nil
}

// FromDocuments builds a Catalog from documents already in memory. The
// hash covers each document's text and fields.
func FromDocuments(docs []Document) *Catalog {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
		keys := make([]string, 0, len(d.Fields))
		for k := range d.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k + "=" + d.Fields[k]))
			h.Write([]byte{0})
		}
	}
	return &Catalog{Documents: docs, digest: h.Sum(nil)}
}

func expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad catalog pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func parse(path string, data []byte) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(data)
	case ".json":
		return parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
}

func parseCSV(data []byte) ([]map[string]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff")))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if err := requireColumns(header); err != nil {
		return nil, err
	}

	var records []map[string]string
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseJSON(data []byte) ([]map[string]string, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	records := make([]map[string]string, 0, len(raw))
	for i, obj := range raw {
		rec := make(map[string]string, len(obj))
		for k, v := range obj {
			rec[k] = stringify(v)
		}
		if rec[FieldCode] == "" && rec[FieldName] == "" {
			return nil, fmt.Errorf("record %d has neither %s nor %s", i, FieldCode, FieldName)
		}
		records = append(records, rec)
	}
	return records, nil
}

func requireColumns(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	for _, col := range []string{FieldCode, FieldName} {
		if !have[col] {
			return fmt.Errorf("missing required column %q", col)
		}
	}
	return nil
}

// stringify renders JSON scalars the way they would appear in a CSV cell.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// NewDocument normalizes a raw record. Values are trimmed, and the
// document text is the code, name, price, and description joined by
// single spaces.
func NewDocument(rec map[string]string) Document {
	fields := make(map[string]string, len(rec))
	for k, v := range rec {
		fields[k] = collapse(v)
	}
	var parts []string
	for _, k := range []string{FieldCode, FieldName, FieldPrice, FieldDescription} {
		if v := fields[k]; v != "" {
			parts = append(parts, v)
		}
	}
	return Document{Text: strings.Join(parts, " "), Fields: fields}
}

// NormalizeKey is the form exact-match keys and queries are compared in.
func NormalizeKey(s string) string {
	return strings.ToUpper(collapse(s))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
