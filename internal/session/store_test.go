package session

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ziadkadry99/productassist/internal/advisor"
	"github.com/ziadkadry99/productassist/internal/db"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func exchange(i int) advisor.Exchange {
	return advisor.Exchange{
		Question: fmt.Sprintf("q%d", i),
		Message:  fmt.Sprintf("m%d", i),
		Products: []advisor.Product{{Product: "Drill", Code: "AB12CD"}},
	}
}

// storeContract exercises behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	h, err := s.History(ctx, "unknown")
	if err != nil || len(h) != 0 {
		t.Fatalf("History(unknown) = %v, %v", h, err)
	}

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, "a", exchange(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Append(ctx, "b", exchange(9)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	h, err = s.History(ctx, "a")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h) != 3 {
		t.Fatalf("len(history) = %d, want limit 3", len(h))
	}
	if h[0].Question != "q2" || h[2].Question != "q4" {
		t.Errorf("history = %s..%s, want q2..q4", h[0].Question, h[2].Question)
	}
	if len(h[0].Products) != 1 || h[0].Products[0].Code != "AB12CD" {
		t.Errorf("products = %+v", h[0].Products)
	}

	if err := s.Clear(ctx, "a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if h, _ := s.History(ctx, "a"); len(h) != 0 {
		t.Errorf("history after Clear = %d entries", len(h))
	}
	if h, _ := s.History(ctx, "b"); len(h) != 1 {
		t.Errorf("other session affected by Clear: %d entries", len(h))
	}

	if err := s.Append(ctx, "b", exchange(10)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Replace(ctx, "b", exchange(11)); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	h, err = s.History(ctx, "b")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h) != 1 || h[0].Question != "q11" {
		t.Errorf("history after Replace = %+v, want only q11", h)
	}
	if err := s.Replace(ctx, "new", exchange(12)); err != nil {
		t.Fatalf("Replace on unknown session: %v", err)
	}
	if h, _ := s.History(ctx, "new"); len(h) != 1 {
		t.Errorf("Replace on unknown session stored %d entries", len(h))
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(3, time.Hour))
}

func TestMemoryStoreHistoryIsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	s.Append(ctx, "a", exchange(1))
	h, _ := s.History(ctx, "a")
	h[0].Question = "changed"
	h2, _ := s.History(ctx, "a")
	if h2[0].Question != "q1" {
		t.Error("History returned shared backing array")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(10, time.Hour)
	s.now = clock.now

	s.Append(ctx, "old", exchange(1))
	clock.advance(45 * time.Minute)
	s.Append(ctx, "new", exchange(2))
	clock.advance(30 * time.Minute)

	n, err := s.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1", n, err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if h, _ := s.History(ctx, "new"); len(h) != 1 {
		t.Error("active session evicted")
	}
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	s := NewSQLiteStore(d, 3, time.Hour)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, newSQLiteStore(t))
}

func TestSQLiteStoreAttributesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	ex := exchange(1)
	ex.Attributes = map[string]any{"industry": "Retail"}
	ex.At = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := s.Append(ctx, "a", ex); err != nil {
		t.Fatalf("Append: %v", err)
	}
	h, err := s.History(ctx, "a")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if h[0].Attributes["industry"] != "Retail" {
		t.Errorf("attributes = %v", h[0].Attributes)
	}
	if !h[0].At.Equal(ex.At) {
		t.Errorf("At = %v, want %v", h[0].At, ex.At)
	}
}

func TestSQLiteStoreSweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newSQLiteStore(t)
	s.now = clock.now

	s.Append(ctx, "old", exchange(1))
	clock.advance(45 * time.Minute)
	s.Append(ctx, "new", exchange(2))
	clock.advance(30 * time.Minute)

	n, err := s.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1", n, err)
	}
	if h, _ := s.History(ctx, "old"); len(h) != 0 {
		t.Error("idle session kept")
	}
	if h, _ := s.History(ctx, "new"); len(h) != 1 {
		t.Error("active session evicted")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("PRODUCTASSIST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PRODUCTASSIST_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisOptions{Addr: addr}, 3, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()
	ids := []string{"a", "b", "new", "unknown"}
	for _, id := range ids {
		s.Clear(ctx, id)
	}
	storeContract(t, s)
	for _, id := range ids {
		s.Clear(ctx, id)
	}
}

func TestRunJanitor(t *testing.T) {
	s := &countingSweeper{swept: make(chan struct{}, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, s, 5*time.Millisecond, discardLogger())
		close(done)
	}()
	<-s.swept
	<-s.swept
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

type countingSweeper struct {
	swept chan struct{}
}

func (c *countingSweeper) Sweep(context.Context) (int, error) {
	select {
	case c.swept <- struct{}{}:
	default:
	}
	return 1, nil
}
