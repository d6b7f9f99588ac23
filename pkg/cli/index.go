package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

func cmdIndex() *cli.Command {
	var indexCfg indexConfig

	return &cli.Command{
		Name:    "index",
		Aliases: []string{"i"},
		Usage:   "Build the embedding index from the corpus and report its size",
		Flags:   indexCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			ci, err := indexCfg.buildCorpusIndex(ctx)
			if err != nil {
				return err
			}
			defer ci.Close()

			_, _ = fmt.Fprintf(color.Output, "%s %d documents (model %s)\n",
				color.GreenString("indexed"), ci.live.Len(), ci.live.ModelID())
			return nil
		},
	}
}
