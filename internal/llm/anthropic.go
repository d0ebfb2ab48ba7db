package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements Provider using the Anthropic Messages API via direct HTTP.
type AnthropicProvider struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		url:    anthropicAPIURL,
		client: &http.Client{},
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// The Messages body is shared with Bedrock, which wraps Anthropic models
// with anthropic_version in place of the model field.
type messagesRequest struct {
	AnthropicVersion string         `json:"anthropic_version,omitempty"`
	Model            string         `json:"model,omitempty"`
	MaxTokens        int            `json:"max_tokens"`
	Temperature      float64        `json:"temperature"`
	System           string         `json:"system,omitempty"`
	StopSequences    []string       `json:"stop_sequences,omitempty"`
	Messages         []messagesTurn `json:"messages"`
}

type messagesTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content    []messagesContent `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type messagesContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newMessagesRequest(req CompletionRequest) messagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	system, turns := splitSystem(req.Messages)
	out := messagesRequest{
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		System:        system,
		StopSequences: req.StopSequences,
	}
	for _, m := range turns {
		out.Messages = append(out.Messages, messagesTurn{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (r *messagesResponse) toCompletion(fallbackModel string) *CompletionResponse {
	var content string
	for _, block := range r.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	model := r.Model
	if model == "" {
		model = fallbackModel
	}
	return &CompletionResponse{
		Content:      content,
		InputTokens:  r.Usage.InputTokens,
		OutputTokens: r.Usage.OutputTokens,
		Model:        model,
		FinishReason: r.StopReason,
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq := newMessagesRequest(req)
	apiReq.Model = req.Model
	if apiReq.Model == "" {
		apiReq.Model = p.model
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read anthropic response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: "anthropic", StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	return apiResp.toCompletion(apiReq.Model), nil
}
