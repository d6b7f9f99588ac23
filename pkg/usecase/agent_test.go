package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/agent/tool/retrieval"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
	"github.com/secmon-lab/ragguard/pkg/usecase"
)

func userTurn(content string) model.Turn {
	return model.Turn{Role: types.RoleUser, Content: content}
}

func TestAgent_QueryWithHistory(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, scenarioCorpus())
	newTool := func() gollem.Tool {
		r := usecase.NewRetriever(idx, usecase.NewGate(allowList(map[string][]string{
			"user:alice": {"doc:budget-2023"},
		})))
		return retrieval.New(r, "user:alice", 2)
	}

	t.Run("returns answer without tool calls", func(t *testing.T) {
		m := &scriptedModel{steps: []func([]gollem.Input) (*gollem.Response, error){
			answer("Hello, what would you like to know?"),
		}}
		agent := usecase.NewAgent(m.client())

		got, err := agent.QueryWithHistory(ctx, []model.Turn{userTurn("hi")}, newTool())
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal("Hello, what would you like to know?")
		gt.Value(t, m.calls()).Equal(1)
	})

	t.Run("runs requested tool and feeds the result back", func(t *testing.T) {
		m := &scriptedModel{steps: []func([]gollem.Input) (*gollem.Response, error){
			callSearch("what did I spend last quarter?"),
			answerFromTool(t),
		}}
		agent := usecase.NewAgent(m.client())

		got, err := agent.QueryWithHistory(ctx, []model.Turn{userTurn("what did I spend last quarter?")}, newTool())
		gt.NoError(t, err).Required()
		gt.String(t, got).Contains("Q4 spending summary")
		gt.Value(t, m.calls()).Equal(2)
	})

	t.Run("model that always calls tools stops at the step bound", func(t *testing.T) {
		const maxSteps = 3
		steps := make([]func([]gollem.Input) (*gollem.Response, error), 0, 10)
		for i := 0; i < 10; i++ {
			steps = append(steps, callSearch("budget"))
		}
		m := &scriptedModel{steps: steps}
		agent := usecase.NewAgent(m.client(), usecase.WithMaxSteps(maxSteps))

		_, err := agent.QueryWithHistory(ctx, []model.Turn{userTurn("loop forever")}, newTool())
		gt.Error(t, err).Is(model.ErrAgentStepLimitExceeded)
		gt.Value(t, m.calls()).Equal(maxSteps + 1)
	})

	t.Run("model failure is an upstream model error", func(t *testing.T) {
		m := &scriptedModel{steps: []func([]gollem.Input) (*gollem.Response, error){
			func([]gollem.Input) (*gollem.Response, error) {
				return nil, errors.New("503 service unavailable")
			},
		}}
		agent := usecase.NewAgent(m.client())

		_, err := agent.QueryWithHistory(ctx, []model.Turn{userTurn("hi")}, newTool())
		gt.Error(t, err).Is(model.ErrUpstreamModel)
	})

	t.Run("empty answer is an upstream model error", func(t *testing.T) {
		m := &scriptedModel{steps: []func([]gollem.Input) (*gollem.Response, error){
			answer("   "),
		}}
		agent := usecase.NewAgent(m.client())

		_, err := agent.QueryWithHistory(ctx, []model.Turn{userTurn("hi")}, newTool())
		gt.Error(t, err).Is(model.ErrUpstreamModel)
	})

	t.Run("unknown tool is reported back to the model", func(t *testing.T) {
		m := &scriptedModel{steps: []func([]gollem.Input) (*gollem.Response, error){
			func([]gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{FunctionCalls: []*gollem.FunctionCall{
					{ID: "call-x", Name: "delete_everything", Arguments: map[string]any{}},
				}}, nil
			},
			func(input []gollem.Input) (*gollem.Response, error) {
				gt.Array(t, input).Length(1).Required()
				resp := input[0].(gollem.FunctionResponse)
				gt.Value(t, resp.ID).Equal("call-x")
				gt.Value(t, resp.Error).NotNil()
				return &gollem.Response{Texts: []string{"I cannot do that."}}, nil
			},
		}}
		agent := usecase.NewAgent(m.client())

		got, err := agent.QueryWithHistory(ctx, []model.Turn{userTurn("wipe it")}, newTool())
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal("I cannot do that.")
	})

	t.Run("tool failure is reported back to the model", func(t *testing.T) {
		m := &scriptedModel{steps: []func([]gollem.Input) (*gollem.Response, error){
			func([]gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{FunctionCalls: []*gollem.FunctionCall{
					{ID: "call-1", Name: retrieval.ToolName, Arguments: map[string]any{}},
				}}, nil
			},
			func(input []gollem.Input) (*gollem.Response, error) {
				resp := input[0].(gollem.FunctionResponse)
				gt.Error(t, resp.Error).Is(model.ErrInvalidArgument)
				return &gollem.Response{Texts: []string{"Please tell me what to search for."}}, nil
			},
		}}
		agent := usecase.NewAgent(m.client())

		got, err := agent.QueryWithHistory(ctx, []model.Turn{userTurn("search")}, newTool())
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal("Please tell me what to search for.")
	})

	t.Run("history is sent as labelled text without error turns", func(t *testing.T) {
		m := &scriptedModel{steps: []func([]gollem.Input) (*gollem.Response, error){
			answer("ok"),
		}}
		agent := usecase.NewAgent(m.client())

		turns := []model.Turn{
			userTurn("first question"),
			{Role: types.RoleError, Content: "internal failure text"},
			userTurn("first question again"),
			{Role: types.RoleAssistant, Content: "first answer"},
			userTurn("follow up"),
		}
		_, err := agent.QueryWithHistory(ctx, turns, newTool())
		gt.NoError(t, err).Required()

		sent := textOf(m.inputs[0])
		gt.String(t, sent).Contains("User: first question")
		gt.String(t, sent).Contains("Assistant: first answer")
		gt.String(t, sent).Contains("User: follow up")
		gt.Bool(t, strings.Contains(sent, "internal failure text")).False()
	})

	t.Run("system prompt names the tool", func(t *testing.T) {
		prompt := usecase.BuildAgentSystemPrompt(t, newTool())
		gt.String(t, prompt).Contains("`search_documents`")
		gt.String(t, prompt).Contains("only from context")
	})

	t.Run("history without dialogue is rejected", func(t *testing.T) {
		agent := usecase.NewAgent(&mockLLMClient{})

		_, err := agent.QueryWithHistory(ctx, []model.Turn{{Role: types.RoleError, Content: "x"}}, newTool())
		gt.Error(t, err).Is(model.ErrInvalidArgument)
	})
}
