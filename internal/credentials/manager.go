// Package credentials keeps a short-lived cloud credential and the client
// built from it fresh for the life of the process.
//
// A Manager retrieves a credential once at start-up, then a single
// background loop replaces it on a fixed interval. Readers call Client,
// which returns the latest snapshot without blocking on I/O. A failed
// refresh keeps the previous snapshot; callers that hit an expired
// credential can force a refresh through Do.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/metrics"
	"github.com/ziadkadry99/productassist/internal/resilience"
)

// ErrExpired is returned by Do when a call still fails with an expired
// or rejected credential after one forced refresh.
var ErrExpired = errors.New("credentials expired")

// Credential is a temporary access key triple.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// Source produces a fresh Credential.
type Source interface {
	Retrieve(ctx context.Context) (Credential, error)
}

// Builder constructs a service client bound to a credential.
type Builder[C any] func(Credential) (C, error)

// Options tunes a Manager. Zero values take defaults.
type Options struct {
	// Interval between background refreshes. Zero or negative disables
	// the loop, which suits credentials that never expire.
	Interval      time.Duration
	RetryAttempts int
	// IsExpired classifies errors returned by Do callbacks. Defaults to
	// IsExpiredError.
	IsExpired func(error) bool
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type snapshot[C any] struct {
	cred   Credential
	client C
	at     time.Time
}

// Manager owns the current credential and client.
type Manager[C any] struct {
	source    Source
	build     Builder[C]
	interval  time.Duration
	attempts  int
	isExpired func(error) bool
	metrics   *metrics.Metrics
	logger    *slog.Logger

	current atomic.Pointer[snapshot[C]]
	group   singleflight.Group
}

// NewManager retrieves the first credential and builds the first client.
// An error here means the process cannot reach its model provider and
// should not start.
func NewManager[C any](ctx context.Context, source Source, build Builder[C], opts Options) (*Manager[C], error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.IsExpired == nil {
		opts.IsExpired = IsExpiredError
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("credentials")
	}
	m := &Manager[C]{
		source:    source,
		build:     build,
		interval:  opts.Interval,
		attempts:  opts.RetryAttempts,
		isExpired: opts.IsExpired,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if err := m.refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial credential retrieval: %w", err)
	}
	return m, nil
}

// Client returns the client built from the most recent credential.
func (m *Manager[C]) Client() C {
	return m.current.Load().client
}

// Credential returns the most recent credential.
func (m *Manager[C]) Credential() Credential {
	return m.current.Load().cred
}

// RefreshedAt reports when the current snapshot was installed.
func (m *Manager[C]) RefreshedAt() time.Time {
	return m.current.Load().at
}

// refreshTimeout bounds a shared retrieval, which is detached from the
// context of whichever caller started it.
const refreshTimeout = time.Minute

// Refresh replaces the snapshot now. Concurrent callers share one
// retrieval; a caller that gives up returns ctx.Err() without aborting it
// for the others. On failure the previous snapshot stays in place.
func (m *Manager[C]) Refresh(ctx context.Context) error {
	ch := m.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, m.refresh(rctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager[C]) refresh(ctx context.Context) error {
	var cred Credential
	err := resilience.Retry(ctx, "credential retrieve", resilience.RetryConfig{
		MaxAttempts: m.attempts,
		Retryable:   func(err error) bool { return !m.isExpired(err) },
	}, func(ctx context.Context) error {
		var err error
		cred, err = m.source.Retrieve(ctx)
		return err
	})
	if err != nil {
		m.metrics.ObserveRefresh(err)
		return err
	}
	client, err := m.build(cred)
	if err != nil {
		err = fmt.Errorf("building client: %w", err)
		m.metrics.ObserveRefresh(err)
		return err
	}
	m.current.Store(&snapshot[C]{cred: cred, client: client, at: time.Now()})
	m.metrics.ObserveRefresh(nil)
	m.logger.Info("credentials refreshed", "expires", cred.Expires)
	return nil
}

// Run refreshes on the configured interval until ctx is cancelled.
func (m *Manager[C]) Run(ctx context.Context) {
	if m.interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Error("credential refresh failed, keeping previous credentials", "error", err)
			}
		}
	}
}

// Do calls fn with the current client. If fn fails because the credential
// was rejected, Do forces one refresh and calls fn once more. A second
// rejection is reported as ErrExpired.
func (m *Manager[C]) Do(ctx context.Context, fn func(ctx context.Context, client C) error) error {
	err := fn(ctx, m.Client())
	if err == nil || !m.isExpired(err) {
		return err
	}
	m.logger.Warn("call rejected with expired credentials, refreshing", "error", err)
	if rerr := m.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%w: refresh failed: %v", ErrExpired, rerr)
	}
	err = fn(ctx, m.Client())
	if err != nil && m.isExpired(err) {
		return fmt.Errorf("%w: %v", ErrExpired, err)
	}
	return err
}
