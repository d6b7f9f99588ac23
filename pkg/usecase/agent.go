package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
)

//go:embed prompt/agent_system.md
var agentSystemPromptTmpl string

var agentSystemPrompt = template.Must(template.New("agent_system").Parse(agentSystemPromptTmpl))

const (
	// DefaultMaxSteps bounds the tool cycles of one question
	DefaultMaxSteps = 5

	// DefaultModelTimeout bounds a single language model call
	DefaultModelTimeout = 60 * time.Second
)

// Agent runs a bounded reasoning loop: call the model, run the tools it
// asks for, feed the results back, and stop at the first answer without
// tool calls. At most maxSteps tool cycles run, so the model is called at
// most maxSteps+1 times.
type Agent struct {
	llmClient    gollem.LLMClient
	maxSteps     int
	modelTimeout time.Duration
}

// AgentOption configures an Agent
type AgentOption func(*Agent)

// WithMaxSteps sets the maximum number of tool cycles. Values below 1 are ignored.
func WithMaxSteps(n int) AgentOption {
	return func(a *Agent) {
		if n >= 1 {
			a.maxSteps = n
		}
	}
}

// WithModelTimeout sets the timeout of one model call
func WithModelTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		a.modelTimeout = d
	}
}

func NewAgent(llmClient gollem.LLMClient, opts ...AgentOption) *Agent {
	a := &Agent{
		llmClient:    llmClient,
		maxSteps:     DefaultMaxSteps,
		modelTimeout: DefaultModelTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxSteps returns the configured tool cycle bound
func (a *Agent) MaxSteps() int {
	return a.maxSteps
}

type agentPromptData struct {
	ToolName string
}

func buildAgentSystemPrompt(tools []gollem.Tool) (string, error) {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Spec().Name)
	}

	var buf bytes.Buffer
	if err := agentSystemPrompt.Execute(&buf, agentPromptData{ToolName: strings.Join(names, "`, `")}); err != nil {
		return "", goerr.Wrap(err, "failed to render agent system prompt")
	}
	return buf.String(), nil
}

// turnsToInput renders the transcript as labelled text. Error turns are
// left out; they describe failures of this system, not dialogue.
func turnsToInput(turns []model.Turn) []gollem.Input {
	var lines []string
	for _, turn := range turns {
		switch turn.Role {
		case types.RoleUser:
			lines = append(lines, "User: "+turn.Content)
		case types.RoleAssistant:
			lines = append(lines, "Assistant: "+turn.Content)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return []gollem.Input{gollem.Text(strings.Join(lines, "\n\n"))}
}

// QueryWithHistory answers the last user turn of turns. tools are the only
// capabilities offered to the model for this call.
func (a *Agent) QueryWithHistory(ctx context.Context, turns []model.Turn, tools ...gollem.Tool) (string, error) {
	logger := logging.From(ctx)

	input := turnsToInput(turns)
	if len(input) == 0 {
		return "", goerr.Wrap(model.ErrInvalidArgument, "conversation has no user or assistant turn")
	}

	systemPrompt, err := buildAgentSystemPrompt(tools)
	if err != nil {
		return "", err
	}

	session, err := a.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(systemPrompt),
		gollem.WithSessionTools(tools...),
	)
	if err != nil {
		return "", goerr.Wrap(model.ErrUpstreamModel, "failed to create model session", goerr.V("cause", err.Error()))
	}

	toolMap := make(map[string]gollem.Tool, len(tools))
	for _, t := range tools {
		toolMap[t.Spec().Name] = t
	}

	for step := 0; ; step++ {
		resp, err := a.generate(ctx, session, input)
		if err != nil {
			return "", goerr.Wrap(err, "model call failed", goerr.V("step", step))
		}

		if len(resp.FunctionCalls) == 0 {
			answer := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
			if answer == "" {
				return "", goerr.Wrap(model.ErrUpstreamModel, "model returned an empty answer", goerr.V("step", step))
			}
			logger.Debug("agent finished", "steps", step)
			return answer, nil
		}

		if step >= a.maxSteps {
			return "", goerr.Wrap(model.ErrAgentStepLimitExceeded, "model kept requesting tools",
				goerr.V("max_steps", a.maxSteps),
			)
		}

		input = a.runTools(ctx, toolMap, resp.FunctionCalls)
	}
}

func (a *Agent) generate(ctx context.Context, session gollem.Session, input []gollem.Input) (*gollem.Response, error) {
	callCtx := ctx
	if a.modelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.modelTimeout)
		defer cancel()
	}

	resp, err := session.GenerateContent(callCtx, input...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, goerr.Wrap(ctxErr, "request canceled during model call")
		}
		return nil, goerr.Wrap(model.ErrUpstreamModel, "failed to generate content", goerr.V("cause", err.Error()))
	}
	if resp == nil {
		return nil, goerr.Wrap(model.ErrUpstreamModel, "model returned no response")
	}
	return resp, nil
}

// runTools executes the requested calls one after another and turns each
// result, including failures, into a function response for the model.
func (a *Agent) runTools(ctx context.Context, toolMap map[string]gollem.Tool, calls []*gollem.FunctionCall) []gollem.Input {
	logger := logging.From(ctx)
	out := make([]gollem.Input, 0, len(calls))

	for _, call := range calls {
		resp := gollem.FunctionResponse{ID: call.ID, Name: call.Name}

		t, ok := toolMap[call.Name]
		if !ok {
			resp.Error = goerr.New("unknown tool", goerr.V("name", call.Name))
			logger.Warn("model requested unknown tool", "name", call.Name)
			out = append(out, resp)
			continue
		}

		result, err := t.Run(ctx, call.Arguments)
		if err != nil {
			logger.Warn("tool execution failed", "name", call.Name, "error", err.Error())
			resp.Error = err
		} else {
			resp.Data = result
		}
		out = append(out, resp)
	}

	return out
}
