package interfaces

import (
	"context"

	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// EmbeddingIndex answers top-k similarity queries over a built corpus.
// After Build returns, an index is read-only and safe for concurrent use.
type EmbeddingIndex interface {
	// Search returns at most k documents ordered by non-increasing score.
	// Equal scores keep ingestion order.
	Search(ctx context.Context, query string, k int) ([]*model.RetrievedDocument, error)

	// Len returns the number of indexed documents
	Len() int

	// ModelID returns the embedder model the index was built with
	ModelID() string
}

// IndexBuilder embeds a full corpus into a new EmbeddingIndex. Build is
// all-or-nothing: on error no index is returned.
type IndexBuilder interface {
	Build(ctx context.Context, docs []model.Document) (EmbeddingIndex, error)
}

// IndexPruner is implemented by builders whose superseded indexes outlive
// Build. Prune drops the ones no reader should still be using; it is
// called only after the new index is being served.
type IndexPruner interface {
	Prune(ctx context.Context) error
}
