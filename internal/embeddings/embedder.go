// Package embeddings turns catalog text and questions into vectors.
package embeddings

import "context"

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name identifies the model. It is part of the index content hash, so
	// switching models forces a rebuild.
	Name() string
}
