package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/service/embedding"
	"github.com/urfave/cli/v3"
)

// Embedding holds configuration for the pinned embedding model. The same
// values must be used when building and when querying an index.
type Embedding struct {
	provider  string
	model     string
	dimension int
	baseURL   string
	apiKey    string
	timeout   time.Duration
}

// Flags returns CLI flags for embedding configuration
func (x *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding provider (gemini, openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name",
			Value:       "text-embedding-004",
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_MODEL"),
			Destination: &x.model,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension",
			Value:       model.DefaultEmbeddingDimension,
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_DIMENSION"),
			Destination: &x.dimension,
		},
		&cli.StringFlag{
			Name:        "embedding-base-url",
			Usage:       "Base URL of an OpenAI compatible embedding endpoint",
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.StringFlag{
			Name:        "embedding-api-key",
			Usage:       "API key of the OpenAI compatible embedding endpoint",
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_API_KEY", "OPENAI_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.DurationFlag{
			Name:        "embedding-timeout",
			Usage:       "Timeout of one embedding request",
			Value:       embedding.DefaultTimeout,
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_TIMEOUT"),
			Destination: &x.timeout,
		},
	}
}

// LogValue implements slog.LogValuer
func (x Embedding) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("model", x.model),
		slog.Int("dimension", x.dimension),
		slog.String("base_url", x.baseURL),
		slog.Duration("timeout", x.timeout),
	)
}

// Dimension returns the configured vector dimension
func (x *Embedding) Dimension() int {
	return x.dimension
}

// Configure creates the embedder. Gemini embeddings reuse the project and
// location of the LLM configuration.
func (x *Embedding) Configure(ctx context.Context, llm *LLM) (interfaces.Embedder, error) {
	if x.dimension <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "embedding-dimension must be positive", goerr.V("dimension", x.dimension))
	}
	opts := []embedding.Option{embedding.WithTimeout(x.timeout)}

	switch x.provider {
	case "gemini":
		if llm == nil || llm.GeminiProject() == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "gemini-project is required for gemini embeddings")
		}
		client, err := gemini.New(ctx, llm.GeminiProject(), llm.GeminiLocation(),
			gemini.WithEmbeddingModel(x.model),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini embedding client")
		}
		return embedding.NewGollem(client, "gemini", x.model, x.dimension, opts...)

	case "openai":
		if x.apiKey == "" && x.baseURL == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "embedding-api-key or embedding-base-url is required for openai embeddings")
		}
		return embedding.NewOpenAI(x.apiKey, x.baseURL, x.model, x.dimension, opts...)

	default:
		return nil, goerr.Wrap(ErrUnknownBackend, "invalid embedding provider", goerr.V("provider", x.provider))
	}
}
