package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/agent/tool"
	"github.com/secmon-lab/ragguard/pkg/agent/tool/retrieval"
	"github.com/secmon-lab/ragguard/pkg/cli/config"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
	"github.com/secmon-lab/ragguard/pkg/usecase"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// errAnswerFailed is returned by a one-shot ask whose answer is an error turn
var errAnswerFailed = errors.New("question could not be answered")

func cmdAsk() *cli.Command {
	var principal string
	var question string
	var indexCfg indexConfig
	var policyCfg config.Policy
	var agentCfg config.Agent

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "principal",
			Aliases:     []string{"p"},
			Usage:       "Identity the questions are asked on behalf of",
			Value:       string(model.AnonymousPrincipal),
			Sources:     cli.EnvVars("RAGGUARD_PRINCIPAL"),
			Destination: &principal,
		},
		&cli.StringFlag{
			Name:        "question",
			Aliases:     []string{"q"},
			Usage:       "Ask one question and exit instead of starting an interactive session",
			Destination: &question,
		},
	}
	flags = append(flags, indexCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)
	flags = append(flags, agentCfg.Flags()...)

	return &cli.Command{
		Name:    "ask",
		Aliases: []string{"a"},
		Usage:   "Ask questions answered only from documents the principal may view",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := agentCfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			ci, err := indexCfg.buildCorpusIndex(ctx)
			if err != nil {
				return err
			}
			defer ci.Close()

			llmClient, err := indexCfg.llm.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure language model")
			}

			pdp, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure policy decision point")
			}

			retrievalK := agentCfg.RetrievalK()
			uc := usecase.New(ci.live, pdp, llmClient,
				func(r *usecase.Retriever) usecase.ToolFactory {
					return retrieval.NewFactory(r, retrievalK)
				},
				usecase.WithGateOptions(policyCfg.GateOptions()...),
				usecase.WithRetrieverOptions(agentCfg.RetrieverOptions()...),
				usecase.WithRetrieverOptions(policyCfg.RetrieverOptions()...),
				usecase.WithAgentOptions(agentCfg.AgentOptions()...),
			)

			watcher, err := indexCfg.corpus.Watcher(func(ctx context.Context) error {
				return ci.live.Rebuild(ctx, ci.indexer)
			})
			if err != nil {
				return err
			}
			if watcher != nil {
				if err := watcher.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start corpus watcher")
				}
				defer watcher.Stop()
			}

			s := newAskSession(uc.Conversation, model.NewPrincipal(principal), color.Output)
			ctx = logging.With(ctx, logging.From(ctx).With("session_id", s.id))
			logging.From(ctx).Info("session started",
				"principal", s.principal.String(),
				"documents", ci.live.Len(),
				"model", ci.live.ModelID(),
				slog.Group("policy", attrsToAny(policyCfg.LogAttrs())...),
				slog.Group("agent", attrsToAny(agentCfg.LogAttrs())...),
			)

			if question != "" {
				return s.askOnce(ctx, question)
			}
			return s.repl(ctx, os.Stdin)
		},
	}
}

// askSession is one conversation of the ask command
type askSession struct {
	id           string
	principal    model.Principal
	history      *model.History
	conversation *usecase.Conversation
	out          io.Writer
}

func newAskSession(conversation *usecase.Conversation, principal model.Principal, out io.Writer) *askSession {
	return &askSession{
		id:           uuid.Must(uuid.NewV7()).String(),
		principal:    principal,
		history:      model.NewHistory(),
		conversation: conversation,
		out:          out,
	}
}

// ask runs one question and prints the turn produced for it
func (s *askSession) ask(ctx context.Context, question string) (model.Turn, error) {
	ctx = tool.WithProgress(ctx, s.progress)
	turns, err := s.conversation.Ask(ctx, s.principal, s.history, question)
	if err != nil {
		return model.Turn{}, err
	}
	last := turns[len(turns)-1]
	s.render(last)
	return last, nil
}

func (s *askSession) askOnce(ctx context.Context, question string) error {
	last, err := s.ask(ctx, question)
	if err != nil {
		return err
	}
	if last.Role == types.RoleError {
		return errAnswerFailed
	}
	return nil
}

func (s *askSession) repl(ctx context.Context, in io.Reader) error {
	prompt := color.New(color.FgCyan, color.Bold)
	hint := color.New(color.Faint)

	_, _ = hint.Fprintf(s.out, "Asking as %s (session %s). Type /history to show the transcript, /exit to quit.\n", s.principal, s.id)

	scanner := bufio.NewScanner(in)
	for {
		_, _ = prompt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/history":
			for _, turn := range s.history.Sequence() {
				s.render(turn)
			}
			continue
		}

		if _, err := s.ask(ctx, line); err != nil {
			if errors.Is(err, usecase.ErrEmptyQuestion) {
				continue
			}
			return err
		}

		if ctx.Err() != nil {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read question")
	}
	return nil
}

func (s *askSession) progress(_ context.Context, e tool.Event) {
	_, _ = color.New(color.Faint).Fprintf(s.out, "  [%s] %s\n", e.Tool, e.Message)
}

func (s *askSession) render(turn model.Turn) {
	switch turn.Role {
	case types.RoleUser:
		_, _ = color.New(color.FgCyan).Fprintf(s.out, "you: %s\n", turn.Content)
	case types.RoleAssistant:
		_, _ = fmt.Fprintf(s.out, "%s %s\n\n", color.GreenString("assistant:"), turn.Content)
	case types.RoleError:
		_, _ = color.New(color.FgRed).Fprintf(s.out, "error: %s\n\n", turn.Content)
	}
}
