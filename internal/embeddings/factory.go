package embeddings

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/productassist/internal/bedrock"
)

// New creates an Embedder for the given provider and model. rt is only
// needed for bedrock.
func New(provider, model string, rt bedrock.Runtime) (Embedder, error) {
	switch provider {
	case "bedrock":
		if rt == nil {
			return nil, fmt.Errorf("bedrock embeddings require a runtime client")
		}
		return NewBedrockEmbedder(rt, model), nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(model), os.Getenv("OPENAI_BASE_URL")), nil
	case "ollama":
		return NewOllamaEmbedder(model, 768, os.Getenv("OLLAMA_HOST")), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
