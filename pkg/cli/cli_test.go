package cli_test

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/agent/tool/retrieval"
	"github.com/secmon-lab/ragguard/pkg/cli"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
	"github.com/secmon-lab/ragguard/pkg/repository/memory"
	"github.com/secmon-lab/ragguard/pkg/service/policy"
	"github.com/secmon-lab/ragguard/pkg/usecase"
)

type stubSession struct {
	generate func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *stubSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.generate(ctx, input...)
}

func (s *stubSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *stubSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *stubSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *stubSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type stubClient struct {
	generate func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (c *stubClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &stubSession{generate: c.generate}, nil
}

func (c *stubClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (constEmbedder) ModelID() string {
	return "test/const@3"
}

func newConversation(t *testing.T, generate func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)) *usecase.Conversation {
	t.Helper()

	idx, err := memory.NewIndexBuilder(constEmbedder{}).Build(t.Context(), []model.Document{
		{ID: "handbook", Content: "Holidays are listed in the handbook."},
	})
	gt.NoError(t, err).Required()

	pdp, err := policy.NewStatic()
	gt.NoError(t, err).Required()

	uc := usecase.New(idx, pdp, &stubClient{generate: generate},
		func(r *usecase.Retriever) usecase.ToolFactory {
			return retrieval.NewFactory(r, retrieval.DefaultK)
		},
	)
	return uc.Conversation
}

func TestAskSession_AskOnce(t *testing.T) {
	t.Run("prints the answer", func(t *testing.T) {
		conv := newConversation(t, func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{"I could not find that in the documents you can access."}}, nil
		})

		var out bytes.Buffer
		s := cli.NewAskSession(conv, model.NewPrincipal("alice"), &out)
		gt.NoError(t, s.AskOnce(t.Context(), "When are the holidays?"))

		gt.String(t, out.String()).Contains("I could not find that")
		turns := s.History().Sequence()
		gt.A(t, turns).Length(2).Required()
		gt.Value(t, turns[0].Role).Equal(types.RoleUser)
		gt.Value(t, turns[1].Role).Equal(types.RoleAssistant)
	})

	t.Run("model failure becomes an error turn and a failed exit", func(t *testing.T) {
		conv := newConversation(t, func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return nil, goerr.New("model overloaded")
		})

		var out bytes.Buffer
		s := cli.NewAskSession(conv, model.NewPrincipal("alice"), &out)
		err := s.AskOnce(t.Context(), "When are the holidays?")
		gt.Error(t, err).Is(cli.ErrAnswerFailed)

		turns := s.History().Sequence()
		gt.A(t, turns).Length(2).Required()
		gt.Value(t, turns[1].Role).Equal(types.RoleError)
		gt.String(t, out.String()).Contains("error:")
	})

	t.Run("tool progress is shown", func(t *testing.T) {
		var calls atomic.Int32
		conv := newConversation(t, func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			if calls.Add(1) == 1 {
				return &gollem.Response{FunctionCalls: []*gollem.FunctionCall{
					{ID: "call-1", Name: retrieval.ToolName, Arguments: map[string]any{"query": "holidays"}},
				}}, nil
			}
			return &gollem.Response{Texts: []string{"No documents you can access mention holidays."}}, nil
		})

		var out bytes.Buffer
		s := cli.NewAskSession(conv, model.NewPrincipal("bob"), &out)
		gt.NoError(t, s.AskOnce(t.Context(), "When are the holidays?"))
		gt.String(t, out.String()).Contains("[search_documents]")
		gt.String(t, out.String()).Contains("No documents you can access")
	})

	t.Run("empty question is rejected without turns", func(t *testing.T) {
		conv := newConversation(t, func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{"unused"}}, nil
		})

		s := cli.NewAskSession(conv, model.NewPrincipal("alice"), &bytes.Buffer{})
		gt.Error(t, s.AskOnce(t.Context(), "  ")).Is(usecase.ErrEmptyQuestion)
		gt.Value(t, s.History().Len()).Equal(0)
	})

	t.Run("session id is a UUIDv7", func(t *testing.T) {
		s := cli.NewAskSession(nil, model.AnonymousPrincipal, &bytes.Buffer{})
		gt.Value(t, len(s.ID())).Equal(36)
		gt.Value(t, s.ID()[14]).Equal(byte('7'))
	})
}

func TestAskSession_REPL(t *testing.T) {
	var calls atomic.Int32
	conv := newConversation(t, func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
		n := calls.Add(1)
		if n == 1 {
			return &gollem.Response{Texts: []string{"first answer"}}, nil
		}
		return &gollem.Response{Texts: []string{"second answer"}}, nil
	})

	in := strings.NewReader("what is the plan?\n\nand then?\n/history\n/exit\nignored\n")
	var out bytes.Buffer
	s := cli.NewAskSession(conv, model.NewPrincipal("bob"), &out)
	gt.NoError(t, s.REPL(t.Context(), in))

	gt.Value(t, calls.Load()).Equal(int32(2))
	turns := s.History().Sequence()
	gt.A(t, turns).Length(4).Required()
	gt.Value(t, turns[0].Content).Equal("what is the plan?")
	gt.Value(t, turns[1].Content).Equal("first answer")
	gt.Value(t, turns[2].Content).Equal("and then?")
	gt.Value(t, turns[3].Content).Equal("second answer")

	// /history prints the whole transcript again
	gt.Value(t, strings.Count(out.String(), "second answer")).Equal(2)
	gt.String(t, out.String()).Contains("you: what is the plan?")
}

func TestVectorIndexConfig(t *testing.T) {
	cfg := cli.VectorIndexConfig(768)
	gt.A(t, cfg.Collections).Length(1).Required()
	gt.Value(t, cfg.Collections[0].Name).Equal("documents")
	gt.A(t, cfg.Collections[0].Indexes).Length(1).Required()

	field := cfg.Collections[0].Indexes[0].Fields[0]
	gt.Value(t, field.Path).Equal("Embedding")
	gt.Value(t, field.Vector).NotNil().Required()
	gt.Value(t, field.Vector.Dimension).Equal(768)
}
