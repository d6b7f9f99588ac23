package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// Gollem generates embeddings through a gollem LLM client
type Gollem struct {
	client    gollem.LLMClient
	provider  string
	modelName string
	dimension int
	opts      options
}

var _ interfaces.Embedder = &Gollem{}

// NewGollem creates an embedder backed by client. provider and modelName
// only label the model identity; the client itself must already be pinned
// to that embedding model.
func NewGollem(client gollem.LLMClient, provider, modelName string, dimension int, opts ...Option) (*Gollem, error) {
	if client == nil {
		return nil, goerr.New("LLM client is required")
	}
	if dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", dimension))
	}

	return &Gollem{
		client:    client,
		provider:  provider,
		modelName: modelName,
		dimension: dimension,
		opts:      newOptions(opts),
	}, nil
}

func (x *Gollem) ModelID() string {
	return modelID(x.provider, x.modelName, x.dimension)
}

func (x *Gollem) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, x.opts.timeout)
	defer cancel()

	embeddings, err := x.client.GenerateEmbedding(ctx, x.dimension, texts)
	if err != nil {
		return nil, goerr.Wrap(model.ErrEmbeddingService, "failed to generate embedding",
			goerr.V("model", x.ModelID()),
			goerr.V("cause", err.Error()),
		)
	}

	// Convert float64 embedding to float32
	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		vectors[i] = make([]float32, len(e))
		for j, v := range e {
			vectors[i][j] = float32(v)
		}
	}

	if err := validate(vectors, len(texts), x.dimension); err != nil {
		return nil, goerr.Wrap(err, "invalid embedding response", goerr.V("model", x.ModelID()))
	}

	return vectors, nil
}
