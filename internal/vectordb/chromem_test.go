package vectordb

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/ziadkadry99/productassist/internal/catalog"
)

// mockEmbedder returns deterministic embeddings based on text content.
// Shared characters contribute to the same positions, so similar texts
// produce similar vectors.
type mockEmbedder struct {
	dims  int
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = m.vector(text)
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

func (m *mockEmbedder) vector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, ch := range text {
		vec[(int(ch)+i)%m.dims] += 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func testDocs() []catalog.Document {
	return []catalog.Document{
		catalog.NewDocument(map[string]string{"Code": "AB12CD", "Name": "Cordless drill with two batteries"}),
		catalog.NewDocument(map[string]string{"Code": "XY34ZZ", "Name": "Nitrile gloves box of 100"}),
		catalog.NewDocument(map[string]string{"Code": "QQ11RR", "Name": "Safety glasses clear lens"}),
	}
}

func TestIndexBuildAndSearch(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{dims: 64}
	idx, err := New(emb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	docs := testDocs()
	var progress []int
	if err := idx.Build(ctx, docs, 2, func(done int) { progress = append(progress, done) }); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Count() != 3 {
		t.Fatalf("Count = %d, want 3", idx.Count())
	}
	if len(progress) != 2 || progress[1] != 3 {
		t.Errorf("progress = %v, want [2 3]", progress)
	}
	if emb.calls != 2 {
		t.Errorf("embed calls = %d, want 2 batches", emb.calls)
	}

	hits, err := idx.Search(ctx, docs[1].Text, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Position != 1 {
		t.Errorf("top hit = %d, want 1", hits[0].Position)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Error("hits not ordered by similarity")
	}
}

func TestIndexSearchClampsK(t *testing.T) {
	idx, err := New(&mockEmbedder{dims: 32})
	if err != nil {
		t.Fatal(err)
	}
	if hits, err := idx.Search(context.Background(), "anything", 5); err != nil || hits != nil {
		t.Errorf("empty index: hits=%v err=%v", hits, err)
	}
	if err := idx.Build(context.Background(), testDocs(), 0, nil); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search(context.Background(), "gloves", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("hits = %d, want all 3", len(hits))
	}
}

func TestIndexPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ann-test.gob.gz")

	emb := &mockEmbedder{dims: 64}
	idx, err := New(emb)
	if err != nil {
		t.Fatal(err)
	}
	docs := testDocs()
	if err := idx.Build(ctx, docs, 8, nil); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	loaded, err := New(emb)
	if err != nil {
		t.Fatal(err)
	}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 3 {
		t.Fatalf("loaded Count = %d, want 3", loaded.Count())
	}
	hits, err := loaded.Search(ctx, docs[2].Text, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Position != 2 {
		t.Errorf("hits = %+v, want position 2", hits)
	}
}

func TestIndexLoadMissing(t *testing.T) {
	idx, err := New(&mockEmbedder{dims: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(filepath.Join(t.TempDir(), "missing.gob.gz")); err == nil {
		t.Error("expected error loading a missing file")
	}
}
