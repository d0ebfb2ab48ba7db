package retriever

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/ziadkadry99/productassist/internal/catalog"
)

// vocabEmbedder places one dimension per known word plus a constant
// "other" dimension so no vector is zero.
type vocabEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  string
}

var vocab = []string{"widget", "gadget", "gizmo"}

func (v *vocabEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		if v.fail != "" && strings.Contains(lower, v.fail) {
			return nil, errors.New("embedding backend unavailable")
		}
		vec := make([]float32, len(vocab)+1)
		for j, w := range vocab {
			vec[j] = float32(strings.Count(lower, w))
		}
		vec[len(vocab)] = 1
		out[i] = normalize(vec)
	}
	return out, nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, x := range vec {
		sum += float64(x * x)
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func (v *vocabEmbedder) Dimensions() int { return len(vocab) + 1 }
func (v *vocabEmbedder) Name() string    { return "vocab" }

func (v *vocabEmbedder) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func doc(code, name string) catalog.Document {
	return catalog.NewDocument(map[string]string{catalog.FieldCode: code, catalog.FieldName: name})
}

func sampleCatalog() *catalog.Catalog {
	return catalog.FromDocuments([]catalog.Document{
		doc("C1", "Widget"),
		doc("C2", "Gadget"),
		doc("C3", "Gizmo"),
	})
}

func newReady(t *testing.T, emb *vocabEmbedder, cat *catalog.Catalog) *Retriever {
	t.Helper()
	r := New(emb, Options{DataDir: t.TempDir(), Workers: 2})
	if err := r.Initialize(context.Background(), cat); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return r
}

func TestSearchRoundTrip(t *testing.T) {
	r := newReady(t, &vocabEmbedder{}, sampleCatalog())
	ctx := context.Background()

	got, err := r.Search(ctx, "C2", 1)
	if err != nil {
		t.Fatalf("Search(C2): %v", err)
	}
	if len(got) != 1 || got[0].Document.Name() != "Gadget" || !got[0].Exact {
		t.Errorf("Search(C2) = %+v, want exact Gadget", got)
	}

	got, err = r.Search(ctx, "something about a gizmo", 1)
	if err != nil {
		t.Fatalf("Search(gizmo): %v", err)
	}
	if len(got) != 1 || got[0].Document.Name() != "Gizmo" || got[0].Exact {
		t.Errorf("Search(gizmo) = %+v, want similarity hit Gizmo", got)
	}
}

func TestSearchByNameIsExact(t *testing.T) {
	r := newReady(t, &vocabEmbedder{}, sampleCatalog())
	got, err := r.Search(context.Background(), "  widget ", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Document.Code() != "C1" {
		t.Errorf("got %+v, want only C1", got)
	}
}

func TestExactMatchSkipsSimilaritySearch(t *testing.T) {
	emb := &vocabEmbedder{}
	cat := catalog.FromDocuments([]catalog.Document{
		doc("C1234B", "Gadget deluxe"),
		doc("ZZ9900", "Gizmo"),
		doc("Q1", "Widget"),
	})
	r := newReady(t, emb, cat)
	before := emb.callCount()

	got, err := r.Search(context.Background(), "is c1234b or zz9900 a gizmo?", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if emb.callCount() != before {
		t.Errorf("embedder called %d times for exact query", emb.callCount()-before)
	}
	if len(got) != 2 || got[0].Document.Code() != "C1234B" || got[1].Document.Code() != "ZZ9900" {
		t.Errorf("got %+v, want C1234B then ZZ9900", got)
	}
}

func TestCandidateKeys(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"c2", []string{"C2"}},
		{"Price of AB12CD?", []string{"PRICE OF AB12CD?", "AB12CD"}},
		{"ab12cd ab12cd", []string{"AB12CD AB12CD", "AB12CD"}},
		{"A1B2C3D4", []string{"A1B2C3D4"}},
		{"ABCDE1 12345", []string{"ABCDE1 12345"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		got := candidateKeys(tt.query)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("candidateKeys(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestLooksLikeCode(t *testing.T) {
	tests := map[string]bool{
		"AB12":     false,
		"AB12C":    true,
		"1234AB":   true,
		"ABCDE1":   false,
		"12345A":   false,
		"AB12CDE":  true,
		"AB12CDEF": false,
		"AB-12":    false,
	}
	for tok, want := range tests {
		if got := looksLikeCode(tok); got != want {
			t.Errorf("looksLikeCode(%q) = %v, want %v", tok, got, want)
		}
	}
}

func TestExactIndexFirstWins(t *testing.T) {
	cat := catalog.FromDocuments([]catalog.Document{
		doc("DUP", "First"),
		doc("DUP", "Second"),
		doc("X2", "dup"),
	})
	r := newReady(t, &vocabEmbedder{}, cat)
	got, err := r.Search(context.Background(), "dup", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Position != 0 {
		t.Errorf("got %+v, want position 0", got)
	}
}

func TestSearchBeforeReady(t *testing.T) {
	r := New(&vocabEmbedder{}, Options{})
	if r.IsReady() {
		t.Fatal("IsReady before Initialize")
	}
	if _, err := r.Search(context.Background(), "C1", 1); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d before ready", r.Len())
	}
}

func TestInitializeTwice(t *testing.T) {
	r := newReady(t, &vocabEmbedder{}, sampleCatalog())
	select {
	case <-r.Ready():
	default:
		t.Fatal("Ready not closed")
	}
	if err := r.Initialize(context.Background(), sampleCatalog()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestEmptyQuery(t *testing.T) {
	r := newReady(t, &vocabEmbedder{}, sampleCatalog())
	if _, err := r.Search(context.Background(), " \t", 1); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestParallelSearchOrderAndFailures(t *testing.T) {
	emb := &vocabEmbedder{}
	r := newReady(t, emb, sampleCatalog())
	emb.fail = "broken"

	queries := []string{"C3", "tell me about gadget things", "broken query", "C1", ""}
	results := r.ParallelSearch(context.Background(), queries, 1)
	if len(results) != len(queries) {
		t.Fatalf("got %d results, want %d", len(results), len(queries))
	}
	wantNames := []string{"Gizmo", "Gadget", "", "Widget", ""}
	for i, want := range wantNames {
		if want == "" {
			if results[i] == nil || len(results[i]) != 0 {
				t.Errorf("results[%d] = %#v, want empty non-nil slice", i, results[i])
			}
			continue
		}
		if len(results[i]) != 1 || results[i][0].Document.Name() != want {
			t.Errorf("results[%d] = %+v, want %s", i, results[i], want)
		}
	}
}

func TestInitializeReusesArtifacts(t *testing.T) {
	dir := t.TempDir()
	cat := sampleCatalog()
	ctx := context.Background()

	first := &vocabEmbedder{}
	r1 := New(first, Options{DataDir: dir})
	if err := r1.Initialize(ctx, cat); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if first.callCount() == 0 {
		t.Fatal("expected documents to be embedded on first build")
	}
	docsPath, annPath := ArtifactPaths(dir, r1.Hash())
	for _, p := range []string{docsPath, annPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("artifact %s: %v", p, err)
		}
	}

	second := &vocabEmbedder{}
	r2 := New(second, Options{DataDir: dir})
	if err := r2.Initialize(ctx, cat); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if second.callCount() != 0 {
		t.Errorf("embedder called %d times, want artifacts reused", second.callCount())
	}
	if r2.Len() != 3 {
		t.Errorf("Len = %d, want 3", r2.Len())
	}
	got, err := r2.Search(ctx, "a gizmo please", 1)
	if err != nil || len(got) != 1 || got[0].Document.Name() != "Gizmo" {
		t.Errorf("Search after reload = %+v, %v", got, err)
	}

	third := &vocabEmbedder{}
	r3 := New(third, Options{DataDir: dir})
	if err := r3.Rebuild(ctx, cat); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if third.callCount() == 0 {
		t.Error("Rebuild reused artifacts")
	}
}

func TestInitializePrunesStaleArtifacts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	old := New(&vocabEmbedder{}, Options{DataDir: dir})
	if err := old.Initialize(ctx, sampleCatalog()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	oldDocs, _ := ArtifactPaths(dir, old.Hash())

	changed := catalog.FromDocuments([]catalog.Document{doc("C9", "Widget")})
	r := New(&vocabEmbedder{}, Options{DataDir: dir})
	if err := r.Initialize(ctx, changed); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if r.Hash() == old.Hash() {
		t.Fatal("hash did not change with catalog content")
	}
	if _, err := os.Stat(oldDocs); !os.IsNotExist(err) {
		t.Errorf("stale artifact still present: %v", err)
	}
}

func TestInitializeBuildFailure(t *testing.T) {
	emb := &vocabEmbedder{fail: "gadget"}
	r := New(emb, Options{DataDir: t.TempDir()})
	if err := r.Initialize(context.Background(), sampleCatalog()); err == nil {
		t.Fatal("expected build error")
	}
	if r.IsReady() {
		t.Error("ready after failed build")
	}
}

func TestFormatMatches(t *testing.T) {
	if got := FormatMatches(nil); got != "No products found." {
		t.Errorf("empty = %q", got)
	}
	d := catalog.NewDocument(map[string]string{
		catalog.FieldCode: "AB12CD", catalog.FieldName: "Drill", catalog.FieldPrice: "99.00", "Brand": "Acme",
	})
	out := FormatMatches([]Match{{Document: d, Exact: true}})
	for _, want := range []string{"Found 1 product(s)", "AB12CD (exact match)", "Name: Drill", "Price: 99.00", "Brand: Acme"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
