package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/agent/tool/retrieval"
	"github.com/secmon-lab/ragguard/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Agent holds CLI flags for the conversation agent and its retrieval tool
type Agent struct {
	maxSteps     int
	modelTimeout time.Duration
	retrievalK   int
	overFetch    int
}

// Flags returns CLI flags for agent configuration
func (x *Agent) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "agent-max-steps",
			Usage:       "Maximum number of tool calls the agent may make for one question",
			Value:       usecase.DefaultMaxSteps,
			Sources:     cli.EnvVars("RAGGUARD_AGENT_MAX_STEPS"),
			Destination: &x.maxSteps,
		},
		&cli.DurationFlag{
			Name:        "agent-model-timeout",
			Usage:       "Timeout of one model call",
			Value:       usecase.DefaultModelTimeout,
			Sources:     cli.EnvVars("RAGGUARD_AGENT_MODEL_TIMEOUT"),
			Destination: &x.modelTimeout,
		},
		&cli.IntFlag{
			Name:        "retrieval-k",
			Usage:       "Number of authorized documents returned per search",
			Value:       retrieval.DefaultK,
			Sources:     cli.EnvVars("RAGGUARD_RETRIEVAL_K"),
			Destination: &x.retrievalK,
		},
		&cli.IntFlag{
			Name:        "over-fetch",
			Usage:       "Candidates fetched per requested document before authorization",
			Value:       usecase.DefaultOverFetch,
			Sources:     cli.EnvVars("RAGGUARD_OVER_FETCH"),
			Destination: &x.overFetch,
		},
	}
}

// LogAttrs returns log attributes for the agent configuration
func (x *Agent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("max_steps", x.maxSteps),
		slog.Duration("model_timeout", x.modelTimeout),
		slog.Int("retrieval_k", x.retrievalK),
		slog.Int("over_fetch", x.overFetch),
	}
}

// Validate checks numeric bounds
func (x *Agent) Validate() error {
	if x.maxSteps <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "agent-max-steps must be positive", goerr.V("value", x.maxSteps))
	}
	if x.retrievalK <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "retrieval-k must be positive", goerr.V("value", x.retrievalK))
	}
	if x.overFetch < 1 {
		return goerr.Wrap(ErrInvalidConfig, "over-fetch must be at least 1", goerr.V("value", x.overFetch))
	}
	return nil
}

// RetrievalK returns the number of documents each tool search returns
func (x *Agent) RetrievalK() int {
	return x.retrievalK
}

// AgentOptions returns options for usecase.NewAgent
func (x *Agent) AgentOptions() []usecase.AgentOption {
	return []usecase.AgentOption{
		usecase.WithMaxSteps(x.maxSteps),
		usecase.WithModelTimeout(x.modelTimeout),
	}
}

// RetrieverOptions returns the ranking related options for usecase.NewRetriever
func (x *Agent) RetrieverOptions() []usecase.RetrieverOption {
	return []usecase.RetrieverOption{usecase.WithOverFetch(x.overFetch)}
}
