package llm

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/productassist/internal/bedrock"
)

// Options carries what some providers need beyond a model name.
type Options struct {
	// Bedrock supplies the runtime client for the bedrock provider.
	Bedrock bedrock.Runtime
}

// NewProvider creates a Provider for the given type and model.
// Supported types: "bedrock", "anthropic", "openai", "ollama".
func NewProvider(providerType, model string, opts Options) (Provider, error) {
	switch providerType {
	case "bedrock":
		if opts.Bedrock == nil {
			return nil, fmt.Errorf("bedrock provider requires a runtime client")
		}
		return NewBedrockProvider(opts.Bedrock, model), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model, os.Getenv("OPENAI_BASE_URL")), nil

	case "ollama":
		return NewOllamaProvider(os.Getenv("OLLAMA_HOST"), model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
