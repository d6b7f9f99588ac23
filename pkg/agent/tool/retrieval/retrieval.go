// Package retrieval exposes authorized document search to the agent as a
// gollem tool bound to a single principal.
package retrieval

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/ragguard/pkg/agent/tool"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

const (
	// ToolName is the name the model uses to call the search tool
	ToolName = "search_documents"

	// DefaultK is the number of documents returned per call
	DefaultK = 4

	// NoAuthorizedDocuments is returned to the model when the search found
	// nothing the principal may view
	NoAuthorizedDocuments = "No authorized documents matched the query."
)

// Retriever returns documents principal is authorized to view, most
// relevant first
type Retriever interface {
	Retrieve(ctx context.Context, principal model.Principal, query string, k int) ([]*model.RetrievedDocument, error)
}

// Factory builds search tools, one per request
type Factory struct {
	retriever Retriever
	k         int
}

// NewFactory creates a factory whose tools return at most k documents.
// Non-positive k falls back to DefaultK.
func NewFactory(retriever Retriever, k int) *Factory {
	if k <= 0 {
		k = DefaultK
	}
	return &Factory{retriever: retriever, k: k}
}

// For returns a fresh tool set bound to principal
func (f *Factory) For(principal model.Principal) []gollem.Tool {
	return []gollem.Tool{New(f.retriever, principal, f.k)}
}

// SearchTool searches the corpus on behalf of exactly one principal. The
// principal is fixed at construction and cannot be changed by the model.
type SearchTool struct {
	retriever Retriever
	principal model.Principal
	k         int
}

var _ gollem.Tool = &SearchTool{}

func New(retriever Retriever, principal model.Principal, k int) *SearchTool {
	return &SearchTool{retriever: retriever, principal: principal, k: k}
}

// Principal returns the identity searches run as
func (t *SearchTool) Principal() model.Principal {
	return t.principal
}

func (t *SearchTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name: ToolName,
		Description: "Search the internal document collection for passages relevant to a question. " +
			"Only documents the current user is allowed to read are returned. " +
			"Call this before answering any question about the organization's documents.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "Natural language search query describing the information needed",
				Required:    true,
			},
		},
	}
}

func (t *SearchTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "query is required")
	}

	tool.Report(ctx, ToolName, "searching documents for %q", query)

	docs, err := t.retriever.Retrieve(ctx, t.principal, query, t.k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search documents", goerr.V("query", query))
	}

	return map[string]any{
		"documents": Join(docs),
		"count":     len(docs),
	}, nil
}

// Join renders documents as one text block. Each document is prefixed by
// its resource name for citation; metadata is never included.
func Join(docs []*model.RetrievedDocument) string {
	if len(docs) == 0 {
		return NoAuthorizedDocuments
	}

	blocks := make([]string, len(docs))
	for i, d := range docs {
		blocks[i] = "[" + model.DocumentResource(d.Document.ID) + "]\n" + d.Document.Content
	}
	return strings.Join(blocks, "\n\n")
}
