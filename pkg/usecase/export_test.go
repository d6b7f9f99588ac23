package usecase

import (
	"testing"

	"github.com/m-mizutani/gollem"
)

// BuildAgentSystemPrompt is exported for testing
func BuildAgentSystemPrompt(t *testing.T, tools ...gollem.Tool) string {
	t.Helper()
	prompt, err := buildAgentSystemPrompt(tools)
	if err != nil {
		t.Fatal(err)
	}
	return prompt
}

// UserFacingMessage is exported for testing
var UserFacingMessage = userFacingMessage
