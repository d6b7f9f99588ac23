package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/fireconf"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/usecase"
)

var ErrAnswerFailed = errAnswerFailed

func VectorIndexConfig(dimension int) *fireconf.Config {
	return vectorIndexConfig(dimension)
}

// AskSession exposes the ask command session to tests
type AskSession = askSession

func NewAskSession(conversation *usecase.Conversation, principal model.Principal, out io.Writer) *AskSession {
	return newAskSession(conversation, principal, out)
}

func (s *askSession) AskOnce(ctx context.Context, question string) error {
	return s.askOnce(ctx, question)
}

func (s *askSession) REPL(ctx context.Context, in io.Reader) error {
	return s.repl(ctx, in)
}

func (s *askSession) ID() string {
	return s.id
}

func (s *askSession) History() *model.History {
	return s.history
}
