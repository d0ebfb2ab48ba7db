package catalog

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// SaveDocuments writes docs to path as gzip-compressed gob, the same
// encoding chromem-go uses for the vector index beside it.
func SaveDocuments(path string, docs []Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	zw := gzip.NewWriter(f)
	encErr := gob.NewEncoder(zw).Encode(docs)
	zErr := zw.Close()
	fErr := f.Close()
	for _, err := range []error{encErr, zErr, fErr} {
		if err != nil {
			os.Remove(tmp)
			return fmt.Errorf("writing documents: %w", err)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("installing %s: %w", path, err)
	}
	return nil
}

// LoadDocuments reads documents written by SaveDocuments.
func LoadDocuments(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer zr.Close()

	var docs []Document
	if err := gob.NewDecoder(zr).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return docs, nil
}
