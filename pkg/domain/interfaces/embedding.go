package interfaces

import "context"

// Embedder converts text into fixed-length vectors with one pinned model
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies provider, model and dimension. An index built
	// with one ModelID must only be queried with the same ModelID.
	ModelID() string
}
