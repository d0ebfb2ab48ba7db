package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/ziadkadry99/productassist/internal/bedrock"
)

// BedrockEmbedder calls an Amazon Titan text embedding model. Titan takes
// one text per request.
type BedrockEmbedder struct {
	runtime    bedrock.Runtime
	model      string
	dimensions int
}

// NewBedrockEmbedder creates an embedder for a Titan model id such as
// amazon.titan-embed-text-v2:0.
func NewBedrockEmbedder(rt bedrock.Runtime, model string) *BedrockEmbedder {
	dims := 1024
	if strings.Contains(model, "embed-text-v1") {
		dims = 1536
	}
	return &BedrockEmbedder{runtime: rt, model: model, dimensions: dims}
}

func (e *BedrockEmbedder) Name() string {
	return "bedrock/" + e.model
}

func (e *BedrockEmbedder) Dimensions() int {
	return e.dimensions
}

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *BedrockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		var resp titanResponse
		if err := bedrock.InvokeJSON(ctx, e.runtime, e.model, titanRequest{InputText: text}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("%s returned an empty embedding", e.model)
		}
		out = append(out, resp.Embedding)
	}
	return out, nil
}
