package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ziadkadry99/productassist/internal/bedrock"
	"github.com/ziadkadry99/productassist/internal/resilience"
)

// RetryingProvider retries transient provider failures with backoff and
// bounds each attempt with a timeout.
type RetryingProvider struct {
	provider Provider
	cfg      resilience.RetryConfig
}

// NewRetryingProvider wraps provider. maxRetries is the number of extra
// attempts after the first.
func NewRetryingProvider(provider Provider, maxRetries int, attemptTimeout time.Duration) *RetryingProvider {
	return &RetryingProvider{
		provider: provider,
		cfg: resilience.RetryConfig{
			MaxAttempts:    maxRetries + 1,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       20 * time.Second,
			AttemptTimeout: attemptTimeout,
			Retryable:      IsTransient,
		},
	}
}

func (p *RetryingProvider) Name() string {
	return p.provider.Name()
}

func (p *RetryingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := resilience.Retry(ctx, p.provider.Name()+" completion", p.cfg, func(ctx context.Context) error {
		var err error
		resp, err = p.provider.Complete(ctx, req)
		return err
	})
	return resp, err
}

// IsTransient reports whether a provider error is likely to clear on its
// own: throttling, server-side failures, timeouts, and dropped
// connections. Credential rejections are not transient; they are handled
// by refreshing the credential instead.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if bedrock.IsTransient(err) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return retryableStatus(status.StatusCode)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
