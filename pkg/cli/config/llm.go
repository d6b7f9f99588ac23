package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"
)

// LLM holds configuration for the language model used by the agent
type LLM struct {
	provider        string
	model           string
	geminiProject   string
	geminiLocation  string
	openaiAPIKey    string
	anthropicAPIKey string
}

// Flags returns CLI flags for LLM configuration
func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "Language model provider (gemini, openai, anthropic)",
			Value:       "gemini",
			Sources:     cli.EnvVars("RAGGUARD_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Language model name (provider default when empty)",
			Sources:     cli.EnvVars("RAGGUARD_LLM_MODEL"),
			Destination: &x.model,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Sources:     cli.EnvVars("RAGGUARD_GEMINI_PROJECT"),
			Destination: &x.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("RAGGUARD_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("RAGGUARD_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &x.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("RAGGUARD_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"),
			Destination: &x.anthropicAPIKey,
		},
	}
}

// LogValue implements slog.LogValuer. API keys are never logged.
func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("model", x.model),
		slog.String("gemini_project", x.geminiProject),
		slog.String("gemini_location", x.geminiLocation),
		slog.Bool("openai_api_key_set", x.openaiAPIKey != ""),
		slog.Bool("anthropic_api_key_set", x.anthropicAPIKey != ""),
	)
}

// GeminiProject returns the Google Cloud project for Gemini
func (x *LLM) GeminiProject() string {
	return x.geminiProject
}

// GeminiLocation returns the Google Cloud location for Gemini
func (x *LLM) GeminiLocation() string {
	return x.geminiLocation
}

// Configure creates the language model client for the selected provider
func (x *LLM) Configure(ctx context.Context) (gollem.LLMClient, error) {
	switch x.provider {
	case "gemini":
		if x.geminiProject == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "gemini-project is required for gemini provider")
		}
		var opts []gemini.Option
		if x.model != "" {
			opts = append(opts, gemini.WithModel(x.model))
		}
		client, err := gemini.New(ctx, x.geminiProject, x.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case "openai":
		if x.openaiAPIKey == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "openai-api-key is required for openai provider")
		}
		var opts []openai.Option
		if x.model != "" {
			opts = append(opts, openai.WithModel(x.model))
		}
		client, err := openai.New(ctx, x.openaiAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	case "anthropic":
		if x.anthropicAPIKey == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "anthropic-api-key is required for anthropic provider")
		}
		var opts []claude.Option
		if x.model != "" {
			opts = append(opts, claude.WithModel(x.model))
		}
		client, err := claude.New(ctx, x.anthropicAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Anthropic client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrUnknownBackend, "invalid llm provider", goerr.V("provider", x.provider))
	}
}
