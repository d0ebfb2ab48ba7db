package llm

import (
	"context"

	"github.com/ziadkadry99/productassist/internal/bedrock"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockProvider calls Anthropic models hosted on Amazon Bedrock. The
// runtime client comes from a credentials manager so calls always use the
// latest assumed-role credentials.
type BedrockProvider struct {
	runtime bedrock.Runtime
	model   string
}

// NewBedrockProvider creates a provider for the given Bedrock model id.
func NewBedrockProvider(rt bedrock.Runtime, model string) *BedrockProvider {
	return &BedrockProvider{runtime: rt, model: model}
}

func (p *BedrockProvider) Name() string {
	return "bedrock"
}

func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := newMessagesRequest(req)
	body.AnthropicVersion = bedrockAnthropicVersion

	var resp messagesResponse
	if err := bedrock.InvokeJSON(ctx, p.runtime, model, body, &resp); err != nil {
		return nil, err
	}
	return resp.toCompletion(model), nil
}
