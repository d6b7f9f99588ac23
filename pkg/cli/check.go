package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/cli/config"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/usecase"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdCheck() *cli.Command {
	var principal string
	var documentID string
	var policyCfg config.Policy

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "principal",
			Aliases:     []string{"p"},
			Usage:       "Identity to check",
			Value:       string(model.AnonymousPrincipal),
			Sources:     cli.EnvVars("RAGGUARD_PRINCIPAL"),
			Destination: &principal,
		},
		&cli.StringFlag{
			Name:        "document",
			Aliases:     []string{"d"},
			Usage:       "Document ID (file name without extension)",
			Required:    true,
			Destination: &documentID,
		},
	}
	flags = append(flags, policyCfg.Flags()...)

	return &cli.Command{
		Name:  "check",
		Usage: "Ask the policy decision point whether a principal may view a document",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pdp, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure policy decision point")
			}

			p := model.NewPrincipal(principal)
			id := model.DocumentID(documentID)
			allowed, err := usecase.NewGate(pdp, policyCfg.GateOptions()...).Check(ctx, p, id)
			if err != nil {
				return err
			}

			logging.From(ctx).Info("authorization checked",
				"principal", p.String(),
				"document", documentID,
				"allowed", allowed,
			)

			verdict := color.RedString("denied")
			if allowed {
				verdict = color.GreenString("allowed")
			}
			_, _ = fmt.Fprintf(color.Output, "%s: %s may view doc:%s\n", verdict, p, id)
			return nil
		},
	}
}
