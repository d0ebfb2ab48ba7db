// Package advisor turns a customer question into a salesperson-style answer
// and a list of recommended catalog products.
package advisor

import (
	"context"
	"time"

	"github.com/ziadkadry99/productassist/internal/retriever"
)

// Product is one recommended catalog entry.
type Product struct {
	Product string `json:"product"`
	Code    string `json:"code"`
}

// Exchange is one question and answer in a session's history.
type Exchange struct {
	Question   string         `json:"question"`
	Message    string         `json:"message"`
	Products   []Product      `json:"products"`
	Attributes map[string]any `json:"attributes,omitempty"`
	At         time.Time      `json:"at"`
}

// Answer is the result of one pipeline run.
type Answer struct {
	Message    string
	Products   []Product
	Attributes map[string]any
	// AttributeDuration is how long customer attribute extraction took.
	AttributeDuration time.Duration
	Duration          time.Duration
	Candidates        int
}

// Retriever finds catalog documents for a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]retriever.Match, error)
}
