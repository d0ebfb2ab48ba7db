package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/productassist/internal/advisor"
	"github.com/ziadkadry99/productassist/internal/credentials"
	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/metrics"
)

// CancelledMessage is the message of a Result whose work was superseded.
const CancelledMessage = "cancelled"

// Runner answers one question given the session history.
type Runner interface {
	Run(ctx context.Context, question string, history []advisor.Exchange) (*advisor.Answer, error)
}

// Result is what a Submit call returns to its caller.
type Result struct {
	Message           string
	Products          []advisor.Product
	Attributes        map[string]any
	AttributeDuration time.Duration
	Duration          time.Duration
	// Cancelled is set when a newer question for the same session
	// replaced this one before it finished.
	Cancelled bool
}

func cancelledResult() *Result {
	return &Result{Message: CancelledMessage, Products: []advisor.Product{}, Cancelled: true}
}

// task is one registered computation. committed and superseded are
// mutually exclusive and decided under mu.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	committed  bool
	superseded bool
}

// supersede cancels t unless it has already committed. It reports
// whether t was cancelled.
func (t *task) supersede() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.superseded {
		return false
	}
	t.superseded = true
	t.cancel()
	return true
}

// commit marks t committed unless it was superseded first.
func (t *task) commit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.superseded {
		return false
	}
	t.committed = true
	return true
}

// Coordinator runs questions so that each session has at most one in
// flight. A new question cancels the session's previous one and waits for
// it to stop before starting.
type Coordinator struct {
	runner  Runner
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	tasks map[string]*task
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(runner Runner, store Store, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		runner:  runner,
		store:   store,
		metrics: m,
		logger:  logging.WithComponent("session"),
		now:     time.Now,
		tasks:   make(map[string]*task),
	}
}

// InFlight returns the number of sessions with registered work.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Submit answers question for the session. When clearHistory is set the
// question is answered without history, and the stored history is
// replaced by this exchange once it commits. A superseded call returns
// the cancelled Result with a nil error and leaves history unchanged.
func (c *Coordinator) Submit(ctx context.Context, sessionID, question string, clearHistory bool) (*Result, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	ctx = logging.WithSessionID(ctx, sessionID)
	log := logging.FromContext(ctx).With("component", "session")

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	prev := c.tasks[sessionID]
	c.tasks[sessionID] = t
	c.mu.Unlock()

	defer func() {
		cancel()
		close(t.done)
		c.mu.Lock()
		if c.tasks[sessionID] == t {
			delete(c.tasks, sessionID)
		}
		c.mu.Unlock()
	}()

	if prev != nil {
		if prev.supersede() {
			log.Info("cancelling previous question for session")
			c.metrics.ObserveSuperseded()
		}
		// prev.done is closed only after prev's own predecessors finished,
		// so this wait covers the whole chain.
		<-prev.done
	}
	if taskCtx.Err() != nil {
		c.metrics.ObserveAsk("cancelled")
		return cancelledResult(), nil
	}

	var history []advisor.Exchange
	if !clearHistory {
		h, err := c.store.History(taskCtx, sessionID)
		if err != nil {
			return nil, c.fail(log, fmt.Errorf("loading history: %w", err))
		}
		history = h
	}

	answer, err := c.runner.Run(taskCtx, question, history)
	if err != nil {
		if taskCtx.Err() != nil {
			log.Info("question cancelled before completion")
			c.metrics.ObserveAsk("cancelled")
			return cancelledResult(), nil
		}
		return nil, c.fail(log, err)
	}

	if !t.commit() {
		log.Info("answer discarded, newer question arrived")
		c.metrics.ObserveAsk("cancelled")
		return cancelledResult(), nil
	}

	// A committed answer is recorded even if the caller has gone away.
	writeCtx := context.WithoutCancel(taskCtx)
	ex := advisor.Exchange{
		Question:   question,
		Message:    answer.Message,
		Products:   answer.Products,
		Attributes: answer.Attributes,
		At:         c.now(),
	}
	if clearHistory {
		err = c.store.Replace(writeCtx, sessionID, ex)
	} else {
		err = c.store.Append(writeCtx, sessionID, ex)
	}
	if err != nil {
		return nil, c.fail(log, fmt.Errorf("saving history: %w", err))
	}

	c.metrics.ObserveAsk("ok")
	products := answer.Products
	if products == nil {
		products = []advisor.Product{}
	}
	return &Result{
		Message:           answer.Message,
		Products:          products,
		Attributes:        answer.Attributes,
		AttributeDuration: answer.AttributeDuration,
		Duration:          answer.Duration,
	}, nil
}

func (c *Coordinator) fail(log *slog.Logger, err error) error {
	if errors.Is(err, credentials.ErrExpired) {
		log.Error("model provider rejected credentials", "error", err)
		c.metrics.ObserveAsk("credentials")
		return fmt.Errorf("%w: %w", ErrCredentials, err)
	}
	log.Error("answering question failed", "error", err)
	c.metrics.ObserveAsk("error")
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
