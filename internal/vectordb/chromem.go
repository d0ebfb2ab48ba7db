// Package vectordb is the approximate nearest neighbour index over catalog
// documents, backed by chromem-go.
package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/productassist/internal/catalog"
	"github.com/ziadkadry99/productassist/internal/embeddings"
)

const collectionName = "catalog"

// Hit is one search result: the document's catalog position and its
// cosine similarity to the query.
type Hit struct {
	Position   int
	Similarity float32
}

// Index stores one embedding per catalog document. It is built once and
// only read afterwards; chromem-go guards its own state so concurrent
// searches are safe.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// New creates an empty in-memory index.
func New(embedder embeddings.Embedder) (*Index, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

// Build embeds docs in batches and adds them under their positions.
// progress, if set, is called after each batch with the running total.
func (x *Index) Build(ctx context.Context, docs []catalog.Document, batchSize int, progress func(done int)) error {
	if batchSize <= 0 {
		batchSize = 32
	}
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Text)
		}
		vecs, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding documents %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(texts))
		}

		batch := make([]chromem.Document, len(texts))
		for i := range texts {
			batch[i] = chromem.Document{
				ID:        strconv.Itoa(start + i),
				Content:   texts[i],
				Embedding: vecs[i],
			}
		}
		// Embeddings are already set, so chromem does no work per
		// document beyond normalising; one goroutine is enough.
		if err := x.collection.AddDocuments(ctx, batch, 1); err != nil {
			return fmt.Errorf("adding documents %d-%d: %w", start, end-1, err)
		}
		if progress != nil {
			progress(end)
		}
	}
	return nil
}

// Search embeds query and returns up to k nearest documents, most
// similar first.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	count := x.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	// chromem-go requires nResults <= collection size.
	k = min(k, count)

	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}

	results, err := x.collection.QueryEmbedding(ctx, vecs[0], k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("corrupt document id %q in index", r.ID)
		}
		hits = append(hits, Hit{Position: pos, Similarity: r.Similarity})
	}
	return hits, nil
}

// Persist writes the index to path as compressed gob. The file is
// written beside path and renamed into place so a crash never leaves a
// truncated artifact behind.
func (x *Index) Persist(path string) error {
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err := x.db.ExportToFile(tmp, true, ""); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install index: %w", err)
	}
	return nil
}

// Load replaces the index contents with those persisted at path.
func (x *Index) Load(path string) error {
	if err := x.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}
	// Re-acquire collection reference after import.
	col := x.db.GetCollection(collectionName, x.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	x.collection = col
	return nil
}

// Count returns the number of indexed documents.
func (x *Index) Count() int {
	return x.collection.Count()
}
