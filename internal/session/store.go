// Package session keeps per-session conversation history and makes sure
// each session has at most one question being answered at a time.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/productassist/internal/advisor"
)

// Store holds conversation history keyed by session id. Implementations
// must be safe for concurrent use.
type Store interface {
	// History returns the session's exchanges, oldest first. An unknown
	// session has no history.
	History(ctx context.Context, id string) ([]advisor.Exchange, error)
	// Append adds an exchange, dropping the oldest ones past the store's
	// history limit.
	Append(ctx context.Context, id string, ex advisor.Exchange) error
	// Replace atomically discards the session's history and stores ex as
	// its only exchange. On error the previous history is unchanged.
	Replace(ctx context.Context, id string, ex advisor.Exchange) error
	// Clear removes the session's history.
	Clear(ctx context.Context, id string) error
	Close() error
}

// Sweeper is implemented by stores that evict idle sessions themselves.
type Sweeper interface {
	// Sweep removes sessions idle for longer than the store's TTL and
	// returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// NewID returns a fresh session id for clients that do not bring one.
func NewID() string {
	return uuid.NewString()
}

// RunJanitor calls s.Sweep every interval until ctx is cancelled.
func RunJanitor(ctx context.Context, s Sweeper, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	limit    int
	ttl      time.Duration
	now      func() time.Time
}

type memorySession struct {
	history []advisor.Exchange
	touched time.Time
}

// NewMemoryStore creates a MemoryStore. limit <= 0 keeps every exchange;
// ttl <= 0 disables eviction.
func NewMemoryStore(limit int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		limit:    limit,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) History(_ context.Context, id string) ([]advisor.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	s.touched = m.now()
	out := make([]advisor.Exchange, len(s.history))
	copy(out, s.history)
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, id string, ex advisor.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &memorySession{}
		m.sessions[id] = s
	}
	s.history = append(s.history, ex)
	if m.limit > 0 && len(s.history) > m.limit {
		s.history = append([]advisor.Exchange(nil), s.history[len(s.history)-m.limit:]...)
	}
	s.touched = m.now()
	return nil
}

func (m *MemoryStore) Replace(_ context.Context, id string, ex advisor.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &memorySession{history: []advisor.Exchange{ex}, touched: m.now()}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Sweep(context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.ttl)
	n := 0
	for id, s := range m.sessions {
		if s.touched.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of sessions held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) Close() error { return nil }
