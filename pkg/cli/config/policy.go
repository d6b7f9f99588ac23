package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/service/policy"
	"github.com/secmon-lab/ragguard/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Policy holds CLI flags for the policy decision point
type Policy struct {
	backend         string
	openfgaURL      string
	openfgaStoreID  string
	openfgaModelID  string
	openfgaToken    string
	staticFile      string
	checkTimeout    time.Duration
	failOnPolicyErr bool
}

// Flags returns CLI flags for policy configuration
func (x *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-backend",
			Usage:       "Policy decision point (openfga or static)",
			Value:       "openfga",
			Sources:     cli.EnvVars("RAGGUARD_POLICY_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "openfga-api-url",
			Usage:       "OpenFGA API URL",
			Value:       "http://localhost:8080",
			Sources:     cli.EnvVars("RAGGUARD_OPENFGA_API_URL", "FGA_API_URL"),
			Destination: &x.openfgaURL,
		},
		&cli.StringFlag{
			Name:        "openfga-store-id",
			Usage:       "OpenFGA store ID",
			Sources:     cli.EnvVars("RAGGUARD_OPENFGA_STORE_ID", "FGA_STORE_ID"),
			Destination: &x.openfgaStoreID,
		},
		&cli.StringFlag{
			Name:        "openfga-model-id",
			Usage:       "OpenFGA authorization model ID (latest model when empty)",
			Sources:     cli.EnvVars("RAGGUARD_OPENFGA_MODEL_ID", "FGA_MODEL_ID"),
			Destination: &x.openfgaModelID,
		},
		&cli.StringFlag{
			Name:        "openfga-api-token",
			Usage:       "OpenFGA API token",
			Sources:     cli.EnvVars("RAGGUARD_OPENFGA_API_TOKEN", "FGA_API_TOKEN"),
			Destination: &x.openfgaToken,
		},
		&cli.StringFlag{
			Name:        "policy-file",
			Usage:       "TOML file of relation tuples for the static policy backend",
			Sources:     cli.EnvVars("RAGGUARD_POLICY_FILE"),
			Destination: &x.staticFile,
		},
		&cli.DurationFlag{
			Name:        "policy-check-timeout",
			Usage:       "Timeout of one authorization check",
			Value:       usecase.DefaultCheckTimeout,
			Sources:     cli.EnvVars("RAGGUARD_POLICY_CHECK_TIMEOUT"),
			Destination: &x.checkTimeout,
		},
		&cli.BoolFlag{
			Name:        "fail-on-policy-error",
			Usage:       "Fail retrieval instead of dropping candidates when the policy service is unavailable",
			Sources:     cli.EnvVars("RAGGUARD_FAIL_ON_POLICY_ERROR"),
			Destination: &x.failOnPolicyErr,
		},
	}
}

// LogAttrs returns log attributes for the policy configuration (secrets hidden)
func (x *Policy) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", x.backend),
		slog.String("openfga_api_url", x.openfgaURL),
		slog.String("openfga_store_id", x.openfgaStoreID),
		slog.String("openfga_model_id", x.openfgaModelID),
		slog.Bool("openfga_api_token_set", x.openfgaToken != ""),
		slog.String("policy_file", x.staticFile),
		slog.Duration("check_timeout", x.checkTimeout),
		slog.Bool("fail_on_policy_error", x.failOnPolicyErr),
	}
}

// GateOptions returns options for usecase.NewGate
func (x *Policy) GateOptions() []usecase.GateOption {
	return []usecase.GateOption{usecase.WithCheckTimeout(x.checkTimeout)}
}

// RetrieverOptions returns the policy related options for usecase.NewRetriever
func (x *Policy) RetrieverOptions() []usecase.RetrieverOption {
	return []usecase.RetrieverOption{usecase.WithFailOnPolicyError(x.failOnPolicyErr)}
}

// Configure creates the policy decision point
func (x *Policy) Configure() (interfaces.PolicyDecisionPoint, error) {
	switch x.backend {
	case "openfga":
		if x.openfgaStoreID == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "openfga-store-id is required when using openfga backend")
		}
		opts := []policy.OpenFGAOption{
			policy.WithHTTPClient(&http.Client{Timeout: x.checkTimeout}),
		}
		if x.openfgaModelID != "" {
			opts = append(opts, policy.WithAuthorizationModelID(x.openfgaModelID))
		}
		if x.openfgaToken != "" {
			opts = append(opts, policy.WithAPIToken(x.openfgaToken))
		}
		pdp, err := policy.NewOpenFGA(x.openfgaURL, x.openfgaStoreID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure OpenFGA client")
		}
		return pdp, nil

	case "static":
		if x.staticFile == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "policy-file is required when using static backend")
		}
		pdp, err := policy.LoadStatic(x.staticFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load static policy")
		}
		return pdp, nil

	default:
		return nil, goerr.Wrap(ErrUnknownBackend, "invalid policy backend", goerr.V("backend", x.backend))
	}
}
