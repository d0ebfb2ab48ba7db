package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ziadkadry99/productassist/internal/llm"
	"github.com/ziadkadry99/productassist/internal/resilience"
)

// StatusError is returned by HTTP-based embedders for non-200 replies.
type StatusError = llm.StatusError

type retrying struct {
	Embedder
	cfg resilience.RetryConfig
}

// WithRetry wraps e so transient failures are retried with backoff and
// each call is bounded by attemptTimeout.
func WithRetry(e Embedder, maxRetries int, attemptTimeout time.Duration) Embedder {
	return &retrying{
		Embedder: e,
		cfg: resilience.RetryConfig{
			MaxAttempts:    maxRetries + 1,
			InitialDelay:   250 * time.Millisecond,
			AttemptTimeout: attemptTimeout,
			Retryable:      llm.IsTransient,
		},
	}
}

func (r *retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := resilience.Retry(ctx, fmt.Sprintf("embed %s", r.Name()), r.cfg, func(ctx context.Context) error {
		var err error
		out, err = r.Embedder.Embed(ctx, texts)
		return err
	})
	return out, err
}
