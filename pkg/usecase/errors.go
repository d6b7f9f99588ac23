package usecase

import (
	"context"
	"errors"

	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// Sentinel errors for use case layer
var (
	ErrEmptyQuestion = errors.New("question is empty")
)

// Messages stored in error turns. They never carry internal error details.
const (
	MessageStepLimitExceeded = "I could not complete an answer within the allowed number of reasoning steps. Please try narrowing your question."
	MessageUpstreamFailure   = "The language model is temporarily unavailable. Please try again later."
	MessageCanceled          = "The request was canceled before an answer was produced."
	MessageInternalFailure   = "An error occurred while processing your question. Please try again later."
)

// userFacingMessage maps a failed question to the text shown in its error turn
func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrAgentStepLimitExceeded):
		return MessageStepLimitExceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MessageCanceled
	case errors.Is(err, model.ErrUpstreamModel):
		return MessageUpstreamFailure
	default:
		return MessageInternalFailure
	}
}
