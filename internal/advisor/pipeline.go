package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ziadkadry99/productassist/internal/llm"
	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/metrics"
)

// Options configures a Pipeline.
type Options struct {
	// TopK is how many documents similarity search returns.
	TopK    int
	Metrics *metrics.Metrics
}

// Pipeline answers product questions: it extracts customer attributes,
// retrieves candidate documents, and asks the model for an answer.
type Pipeline struct {
	provider  llm.Provider
	model     string
	retriever Retriever
	topK      int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(provider llm.Provider, model string, r Retriever, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	return &Pipeline{
		provider:  provider,
		model:     model,
		retriever: r,
		topK:      opts.TopK,
		metrics:   opts.Metrics,
		logger:    logging.WithComponent("advisor"),
	}
}

// Run answers question in the context of history. Errors from the model
// provider are returned wrapped, so credential expiry can be detected
// with errors.Is.
func (p *Pipeline) Run(ctx context.Context, question string, history []Exchange) (*Answer, error) {
	start := time.Now()
	log := logging.FromContext(ctx).With("component", "advisor")

	attrs, err := p.ExtractAttributes(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("extracting customer attributes: %w", err)
	}
	attrDur := time.Since(start)
	p.metrics.ObserveStage("attributes", attrDur)

	retrieveStart := time.Now()
	matches, err := p.retriever.Search(ctx, retrievalQuery(question, attrs), p.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving products: %w", err)
	}
	p.metrics.ObserveStage("retrieval", time.Since(retrieveStart))
	log.Debug("candidates retrieved", "count", len(matches))

	genStart := time.Now()
	content, err := p.complete(ctx, answerSystemPrompt, buildAnswerPrompt(question, attrs, matches, history), 0.2)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	p.metrics.ObserveStage("generation", time.Since(genStart))

	message, products, err := ParseAnswer(content)
	if err != nil {
		log.Warn("model reply could not be parsed", "error", err, "reply_chars", len(content))
		return nil, err
	}

	return &Answer{
		Message:           message,
		Products:          products,
		Attributes:        attrs,
		AttributeDuration: attrDur,
		Duration:          time.Since(start),
		Candidates:        len(matches),
	}, nil
}

// ExtractAttributes asks the model for facts about the customer. Replies
// without attributes give an empty map.
func (p *Pipeline) ExtractAttributes(ctx context.Context, question string) (map[string]any, error) {
	content, err := p.complete(ctx, attributeSystemPrompt, buildAttributePrompt(question), 0)
	if err != nil {
		return nil, err
	}
	attrs, invalid := ParseAttributes(content)
	if invalid {
		logging.FromContext(ctx).Warn("ignoring unparseable customer attributes", "component", "advisor")
	}
	return attrs, nil
}

func (p *Pipeline) complete(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   2048,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	in, out := resp.InputTokens, resp.OutputTokens
	if in == 0 {
		in = llm.EstimateTokens(system) + llm.EstimateTokens(prompt)
	}
	if out == 0 {
		out = llm.EstimateTokens(resp.Content)
	}
	p.logger.Debug("model call",
		"provider", p.provider.Name(), "model", p.model,
		"input_tokens", in, "output_tokens", out,
		"estimated_cost_usd", llm.EstimateCost(p.model, in, out))
	return strings.TrimSpace(resp.Content), nil
}
