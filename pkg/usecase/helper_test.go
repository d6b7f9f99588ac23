package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/repository/memory"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{"This is a test response from the AI agent."},
	}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

// scriptedModel answers each model call with the next function in steps
// and records what it was given.
type scriptedModel struct {
	mu     sync.Mutex
	steps  []func(input []gollem.Input) (*gollem.Response, error)
	inputs [][]gollem.Input
}

func (m *scriptedModel) client() *mockLLMClient {
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{generateContentFn: m.generate}, nil
		},
	}
}

func (m *scriptedModel) generate(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.inputs)
	m.inputs = append(m.inputs, input)
	if n >= len(m.steps) {
		return nil, goerr.New("unexpected model call", goerr.V("call", n))
	}
	return m.steps[n](input)
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

func callSearch(query string) func([]gollem.Input) (*gollem.Response, error) {
	return func([]gollem.Input) (*gollem.Response, error) {
		return &gollem.Response{
			FunctionCalls: []*gollem.FunctionCall{
				{ID: "call-1", Name: "search_documents", Arguments: map[string]any{"query": query}},
			},
		}, nil
	}
}

func answer(text string) func([]gollem.Input) (*gollem.Response, error) {
	return func([]gollem.Input) (*gollem.Response, error) {
		return &gollem.Response{Texts: []string{text}}, nil
	}
}

// answerFromTool replies with the documents text of the previous tool call
func answerFromTool(t *testing.T) func([]gollem.Input) (*gollem.Response, error) {
	return func(input []gollem.Input) (*gollem.Response, error) {
		gt.Array(t, input).Length(1).Required()
		resp, ok := input[0].(gollem.FunctionResponse)
		if !ok {
			t.Fatalf("expected function response, got %T", input[0])
		}
		gt.Value(t, resp.Error).Nil()
		docs, _ := resp.Data["documents"].(string)
		return &gollem.Response{Texts: []string{"From your documents: " + docs}}, nil
	}
}

func textOf(input []gollem.Input) string {
	var parts []string
	for _, in := range input {
		if txt, ok := in.(gollem.Text); ok {
			parts = append(parts, string(txt))
		}
	}
	return strings.Join(parts, "\n")
}

var testKeywords = []string{"spend", "quarter", "salary", "compensation", "roadmap", "holiday"}

// keywordEmbedder puts one axis per known keyword so rankings are predictable
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(testKeywords)+1)
		lower := strings.ToLower(text)
		for axis, kw := range testKeywords {
			if strings.Contains(lower, kw) {
				vec[axis] = 1
			}
		}
		vec[len(testKeywords)] = 0.1
		out[i] = vec
	}
	return out, nil
}

func (e *keywordEmbedder) ModelID() string {
	return "test/keyword@7"
}

// failingEmbedder simulates an unreachable embedding service
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, goerr.Wrap(model.ErrEmbeddingService, "connection refused")
}

func (failingEmbedder) ModelID() string {
	return "test/keyword@7"
}

// mockPDP is a policy decision point driven by a function
type mockPDP struct {
	mu      sync.Mutex
	checkFn func(ctx context.Context, query model.AuthorizationQuery) (bool, error)
	queries []model.AuthorizationQuery
}

func (m *mockPDP) Check(ctx context.Context, query model.AuthorizationQuery) (bool, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	return m.checkFn(ctx, query)
}

func (m *mockPDP) checked() []model.AuthorizationQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AuthorizationQuery, len(m.queries))
	copy(out, m.queries)
	return out
}

// allowList grants viewer on exactly the given (subject, resource) pairs
func allowList(grants map[string][]string) *mockPDP {
	return &mockPDP{
		checkFn: func(ctx context.Context, query model.AuthorizationQuery) (bool, error) {
			for _, res := range grants[query.Principal] {
				if res == query.Resource {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

// scenarioCorpus has salary-2023 ranking above budget-2023 for spending questions
func scenarioCorpus() []model.Document {
	return []model.Document{
		{ID: "budget-2023", Content: "Q4 spending summary: total 1.2M"},
		{ID: "salary-2023", Content: "compensation details: spend per head last quarter"},
		{ID: "roadmap", Content: "roadmap for next year"},
	}
}

func buildIndex(t *testing.T, docs []model.Document) interfaces.EmbeddingIndex {
	t.Helper()
	idx, err := memory.NewIndexBuilder(&keywordEmbedder{}).Build(context.Background(), docs)
	gt.NoError(t, err).Required()
	return idx
}
