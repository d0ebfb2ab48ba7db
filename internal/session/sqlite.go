package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ziadkadry99/productassist/internal/advisor"
	"github.com/ziadkadry99/productassist/internal/db"
)

// Sortable as text, matching SQLite's datetime() output.
const timeLayout = "2006-01-02 15:04:05.000"

// SQLiteStore persists history in the session database.
type SQLiteStore struct {
	db    *db.DB
	limit int
	ttl   time.Duration
	now   func() time.Time
}

// NewSQLiteStore creates a store over an open database. The store owns d
// and closes it on Close.
func NewSQLiteStore(d *db.DB, limit int, ttl time.Duration) *SQLiteStore {
	return &SQLiteStore{db: d, limit: limit, ttl: ttl, now: time.Now}
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func (s *SQLiteStore) History(ctx context.Context, id string) ([]advisor.Exchange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question, message, products, attributes, created_at
		   FROM chat_exchanges WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []advisor.Exchange
	for rows.Next() {
		var (
			ex                  advisor.Exchange
			products, attrs, at string
		)
		if err := rows.Scan(&ex.Question, &ex.Message, &products, &attrs, &at); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		if err := json.Unmarshal([]byte(products), &ex.Products); err != nil {
			return nil, fmt.Errorf("decoding products: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &ex.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes: %w", err)
		}
		ex.At, _ = time.Parse(timeLayout, at)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Append(ctx context.Context, id string, ex advisor.Exchange) error {
	return s.write(ctx, id, ex, false)
}

// Replace deletes the old exchanges and inserts ex in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, id string, ex advisor.Exchange) error {
	return s.write(ctx, id, ex, true)
}

func (s *SQLiteStore) write(ctx context.Context, id string, ex advisor.Exchange, reset bool) error {
	products, err := json.Marshal(nonNilProducts(ex.Products))
	if err != nil {
		return fmt.Errorf("encoding products: %w", err)
	}
	attrs := []byte("{}")
	if len(ex.Attributes) > 0 {
		if attrs, err = json.Marshal(ex.Attributes); err != nil {
			return fmt.Errorf("encoding attributes: %w", err)
		}
	}
	at := ex.At
	if at.IsZero() {
		at = s.now()
	}
	now := s.stamp()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_sessions (id, created_at, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`, id, now, now); err != nil {
			return fmt.Errorf("upserting session: %w", err)
		}
		if reset {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chat_exchanges WHERE session_id = ?`, id); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_exchanges (session_id, question, message, products, attributes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, ex.Question, ex.Message, string(products), string(attrs), at.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("inserting exchange: %w", err)
		}
		if s.limit > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM chat_exchanges WHERE session_id = ? AND id NOT IN (
				    SELECT id FROM chat_exchanges WHERE session_id = ? ORDER BY id DESC LIMIT ?)`,
				id, id, s.limit); err != nil {
				return fmt.Errorf("trimming history: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Clear(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_exchanges WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl).UTC().Format(timeLayout)
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chat_exchanges WHERE session_id IN (
			    SELECT id FROM chat_sessions WHERE updated_at < ?)`, cutoff); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	return int(n), nil
}

// Check pings the database.
func (s *SQLiteStore) Check(ctx context.Context) error {
	return s.db.Check(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nonNilProducts(p []advisor.Product) []advisor.Product {
	if p == nil {
		return []advisor.Product{}
	}
	return p
}
