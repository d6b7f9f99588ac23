package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
	"github.com/secmon-lab/ragguard/pkg/utils/errutil"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
)

// ToolFactory builds the tools offered to the agent for one request. The
// returned tools act on behalf of principal only and must not be reused
// for another request.
type ToolFactory interface {
	For(principal model.Principal) []gollem.Tool
}

// Conversation is the request boundary: it turns one question into a user
// turn plus an assistant or error turn on the session history.
type Conversation struct {
	agent *Agent
	tools ToolFactory
}

func NewConversation(agent *Agent, tools ToolFactory) *Conversation {
	return &Conversation{agent: agent, tools: tools}
}

// Ask appends question as a user turn, runs the agent on the whole
// transcript and appends its answer. Failures while answering become an
// error turn, so the returned error is non-nil only when question is
// empty, in which case history is left untouched. Concurrent calls on the
// same history run one after another, each seeing every earlier exchange.
func (c *Conversation) Ask(ctx context.Context, principal model.Principal, history *model.History, question string) ([]model.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, goerr.Wrap(ErrEmptyQuestion, "question must not be empty")
	}
	if principal == "" {
		principal = model.AnonymousPrincipal
	}
	if history == nil {
		history = model.NewHistory()
	}
	release := history.Exchange()
	defer release()

	logger := logging.From(ctx).With("principal", principal.String())
	ctx = logging.With(ctx, logger)
	started := time.Now()

	if err := history.Append(model.Turn{Role: types.RoleUser, Content: question}); err != nil {
		return nil, goerr.Wrap(err, "failed to append user turn")
	}

	answer, err := c.agent.QueryWithHistory(ctx, history.Sequence(), c.tools.For(principal)...)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to answer question")
		if appendErr := history.Append(model.Turn{Role: types.RoleError, Content: userFacingMessage(err)}); appendErr != nil {
			return nil, goerr.Wrap(appendErr, "failed to append error turn")
		}
		return history.Sequence(), nil
	}

	if err := history.Append(model.Turn{Role: types.RoleAssistant, Content: answer}); err != nil {
		return nil, goerr.Wrap(err, "failed to append assistant turn")
	}

	logger.Info("question answered",
		"turns", history.Len(),
		"elapsed", time.Since(started).String(),
	)
	return history.Sequence(), nil
}
