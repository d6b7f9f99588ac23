package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

const maxBatchSize = 100

// OpenAI generates embeddings from any OpenAI-compatible endpoint
// (OpenAI, Azure gateways, Ollama, LM Studio).
type OpenAI struct {
	client    *openai.Client
	modelName string
	dimension int
	opts      options
}

var _ interfaces.Embedder = &OpenAI{}

// NewOpenAI creates an embedder for modelName. baseURL may be empty to use
// the public OpenAI API. dimension 0 accepts whatever the model returns but
// still requires every vector to have the same length.
func NewOpenAI(apiKey, baseURL, modelName string, dimension int, opts ...Option) (*OpenAI, error) {
	if modelName == "" {
		return nil, goerr.New("embedding model is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		modelName: modelName,
		dimension: dimension,
		opts:      newOptions(opts),
	}, nil
}

func (x *OpenAI) ModelID() string {
	return modelID("openai-compatible", x.modelName, x.dimension)
}

func (x *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))

	// Batch up to maxBatchSize texts per API call
	for i := 0; i < len(texts); i += maxBatchSize {
		end := min(i+maxBatchSize, len(texts))
		batch := texts[i:end]

		vectors, err := x.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	dimension := x.dimension
	if dimension == 0 {
		dimension = len(all[0])
	}
	if err := validate(all, len(texts), dimension); err != nil {
		return nil, goerr.Wrap(err, "invalid embedding response", goerr.V("model", x.ModelID()))
	}

	return all, nil
}

func (x *OpenAI) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, x.opts.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input: batch,
		Model: openai.EmbeddingModel(x.modelName),
	}
	if x.dimension > 0 {
		req.Dimensions = x.dimension
	}

	resp, err := x.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(model.ErrEmbeddingService, "openai embedding request failed",
			goerr.V("model", x.modelName),
			goerr.V("cause", err.Error()),
		)
	}
	if len(resp.Data) != len(batch) {
		return nil, goerr.Wrap(model.ErrEmbeddingService, "unexpected number of embeddings",
			goerr.V("expected", len(batch)),
			goerr.V("actual", len(resp.Data)),
		)
	}

	vectors := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, goerr.Wrap(model.ErrEmbeddingService, "embedding index out of range", goerr.V("index", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
