// Package retriever answers catalog lookups by trying an exact key match
// first and falling back to nearest-neighbour search over embeddings.
//
// The catalog, the exact-match table, and the vector index are built once
// by Initialize and never written again, so searches take no locks.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/productassist/internal/catalog"
	"github.com/ziadkadry99/productassist/internal/embeddings"
	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/metrics"
	"github.com/ziadkadry99/productassist/internal/progress"
	"github.com/ziadkadry99/productassist/internal/vectordb"
)

var (
	// ErrNotReady is returned by Search before Initialize has finished.
	ErrNotReady = errors.New("catalog index is not ready")
	// ErrAlreadyInitialized is returned by a second Initialize or Rebuild.
	ErrAlreadyInitialized = errors.New("retriever already initialized")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("empty query")
)

// Match is one search result.
type Match struct {
	Document   catalog.Document
	Position   int
	Similarity float32
	// Exact is true when the document was found by key rather than by
	// similarity.
	Exact bool
}

// Options configures a Retriever.
type Options struct {
	// DataDir holds the persisted document and index artifacts.
	DataDir string
	// BatchSize is how many documents are embedded per request.
	BatchSize int
	// Workers bounds ParallelSearch concurrency.
	Workers  int
	Reporter progress.Reporter
	Metrics  *metrics.Metrics
}

// Retriever is the hybrid exact-match and ANN search engine.
type Retriever struct {
	embedder embeddings.Embedder
	opts     Options
	logger   *slog.Logger

	started atomic.Bool
	ready   chan struct{}

	// Written once before ready is closed.
	docs  []catalog.Document
	exact map[string]int
	ann   *vectordb.Index
	hash  string
}

// New creates an uninitialized Retriever.
func New(embedder embeddings.Embedder, opts Options) *Retriever {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Nop{}
	}
	return &Retriever{
		embedder: embedder,
		opts:     opts,
		logger:   logging.WithComponent("retriever"),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the index can serve searches.
func (r *Retriever) Ready() <-chan struct{} {
	return r.ready
}

// IsReady reports whether Ready has fired.
func (r *Retriever) IsReady() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// Len returns the number of indexed documents, or 0 before ready.
func (r *Retriever) Len() int {
	if !r.IsReady() {
		return 0
	}
	return len(r.docs)
}

// Hash identifies the catalog content and embedding model the index was
// built from.
func (r *Retriever) Hash() string {
	if !r.IsReady() {
		return ""
	}
	return r.hash
}

// Initialize makes the index ready. Persisted artifacts for the same
// catalog content and embedding model are reused when both are present;
// otherwise every document is embedded and the artifacts are written.
func (r *Retriever) Initialize(ctx context.Context, cat *catalog.Catalog) error {
	return r.initialize(ctx, cat, false)
}

// Rebuild is Initialize without the persisted fast path.
func (r *Retriever) Rebuild(ctx context.Context, cat *catalog.Catalog) error {
	return r.initialize(ctx, cat, true)
}

func (r *Retriever) initialize(ctx context.Context, cat *catalog.Catalog, force bool) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	start := time.Now()
	hash := cat.Hash(r.embedder.Name())
	docsPath, annPath := ArtifactPaths(r.opts.DataDir, hash)

	var (
		docs   []catalog.Document
		idx    *vectordb.Index
		source = "loaded"
	)
	if !force {
		docs, idx = r.loadArtifacts(docsPath, annPath)
	}
	if idx == nil {
		source = "built"
		var err error
		docs = cat.Documents
		idx, err = r.build(ctx, docs)
		if err != nil {
			return err
		}
		r.persist(idx, docs, docsPath, annPath, hash)
	}

	r.docs = docs
	r.exact = buildExactIndex(docs, r.logger)
	r.ann = idx
	r.hash = hash
	elapsed := time.Since(start)
	r.opts.Metrics.ObserveIndex(source, len(docs), elapsed)
	r.logger.Info("catalog index ready",
		"source", source, "documents", len(docs), "keys", len(r.exact), "hash", hash, "elapsed", elapsed.Round(time.Millisecond))
	close(r.ready)
	return nil
}

// ArtifactPaths returns where the documents and ANN index for hash live.
func ArtifactPaths(dataDir, hash string) (docsPath, annPath string) {
	return filepath.Join(dataDir, "documents-"+hash+".gob.gz"),
		filepath.Join(dataDir, "ann-"+hash+".gob.gz")
}

func (r *Retriever) loadArtifacts(docsPath, annPath string) ([]catalog.Document, *vectordb.Index) {
	if !exists(docsPath) || !exists(annPath) {
		return nil, nil
	}
	docs, err := catalog.LoadDocuments(docsPath)
	if err != nil {
		r.logger.Warn("ignoring unreadable documents artifact", "path", docsPath, "error", err)
		return nil, nil
	}
	idx, err := vectordb.New(r.embedder)
	if err != nil {
		r.logger.Warn("creating index", "error", err)
		return nil, nil
	}
	if err := idx.Load(annPath); err != nil {
		r.logger.Warn("ignoring unreadable index artifact", "path", annPath, "error", err)
		return nil, nil
	}
	if idx.Count() != len(docs) {
		r.logger.Warn("persisted artifacts disagree, rebuilding", "documents", len(docs), "vectors", idx.Count())
		return nil, nil
	}
	return docs, idx
}

func (r *Retriever) build(ctx context.Context, docs []catalog.Document) (*vectordb.Index, error) {
	idx, err := vectordb.New(r.embedder)
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	rep := r.opts.Reporter
	rep.Start(len(docs))
	err = idx.Build(ctx, docs, r.opts.BatchSize, func(done int) {
		rep.Update(done, "embedding catalog")
	})
	rep.Finish()
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return idx, nil
}

// persist writes the index before the documents, so the documents file
// existing implies a complete pair. Failures are logged; the in-memory
// index still serves.
func (r *Retriever) persist(idx *vectordb.Index, docs []catalog.Document, docsPath, annPath, hash string) {
	if r.opts.DataDir == "" {
		return
	}
	if err := os.MkdirAll(r.opts.DataDir, 0755); err != nil {
		r.logger.Error("cannot create data dir, index not persisted", "dir", r.opts.DataDir, "error", err)
		return
	}
	if err := idx.Persist(annPath); err != nil {
		r.logger.Error("persisting index", "path", annPath, "error", err)
		return
	}
	if err := catalog.SaveDocuments(docsPath, docs); err != nil {
		r.logger.Error("persisting documents", "path", docsPath, "error", err)
		return
	}
	r.pruneStale(hash)
}

// pruneStale removes artifacts left by earlier catalog versions.
func (r *Retriever) pruneStale(hash string) {
	for _, pattern := range []string{"documents-*.gob.gz", "ann-*.gob.gz"} {
		matches, _ := filepath.Glob(filepath.Join(r.opts.DataDir, pattern))
		for _, m := range matches {
			if strings.Contains(filepath.Base(m), hash) {
				continue
			}
			if err := os.Remove(m); err == nil {
				r.logger.Debug("removed stale artifact", "path", m)
			}
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Search returns the documents for query. If the whole query, or any
// product-code-shaped token in it, is a catalog key, the matching
// documents are returned and no similarity search runs. Otherwise the k
// nearest documents are returned.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if !r.IsReady() {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	if matches := r.exactMatches(query); len(matches) > 0 {
		r.opts.Metrics.ObserveSearch("exact", time.Since(start))
		return matches, nil
	}

	hits, err := r.ann.Search(ctx, strings.TrimSpace(query), k)
	if err != nil {
		r.opts.Metrics.ObserveSearch("error", time.Since(start))
		return nil, err
	}
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(r.docs) {
			continue
		}
		matches = append(matches, Match{Document: r.docs[h.Position], Position: h.Position, Similarity: h.Similarity})
	}
	r.opts.Metrics.ObserveSearch("ann", time.Since(start))
	return matches, nil
}

func (r *Retriever) exactMatches(query string) []Match {
	var matches []Match
	seen := make(map[int]bool)
	for _, key := range candidateKeys(query) {
		pos, ok := r.exact[key]
		if !ok || seen[pos] {
			continue
		}
		seen[pos] = true
		matches = append(matches, Match{Document: r.docs[pos], Position: pos, Similarity: 1, Exact: true})
	}
	return matches
}

// ParallelSearch runs Search for every query with at most Workers in
// flight. results[i] belongs to queries[i]. A failed query yields an
// empty slice at its position and does not affect the others.
func (r *Retriever) ParallelSearch(ctx context.Context, queries []string, k int) [][]Match {
	results := make([][]Match, len(queries))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, q := range queries {
		g.Go(func() error {
			m, err := r.Search(ctx, q, k)
			if err != nil {
				logging.FromContext(ctx).Warn("search failed, returning no results for query",
					"component", "retriever", "query", q, "error", err)
				m = []Match{}
			}
			results[i] = m
			return nil
		})
	}
	_ = g.Wait()
	return results
}
