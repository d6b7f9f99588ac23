package memory

import (
	"context"
	"math"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/repository/ingest"
)

// IndexBuilder builds in-process embedding indexes
type IndexBuilder struct {
	embedder interfaces.Embedder
	cfg      ingest.Config
}

var _ interfaces.IndexBuilder = &IndexBuilder{}

// IndexOption configures an IndexBuilder
type IndexOption func(*IndexBuilder)

// WithIngestConfig sets embedding concurrency and batch size
func WithIngestConfig(cfg ingest.Config) IndexOption {
	return func(b *IndexBuilder) {
		b.cfg = cfg
	}
}

// NewIndexBuilder creates a builder that embeds with embedder
func NewIndexBuilder(embedder interfaces.Embedder, opts ...IndexOption) *IndexBuilder {
	b := &IndexBuilder{embedder: embedder}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type indexEntry struct {
	doc    model.Document
	vector []float32
}

// Index holds every document and its embedding in process memory. It has
// no writers after Build, so reads need no locking.
type Index struct {
	embedder interfaces.Embedder
	modelID  string
	entries  []indexEntry
}

var _ interfaces.EmbeddingIndex = &Index{}

func (b *IndexBuilder) Build(ctx context.Context, docs []model.Document) (interfaces.EmbeddingIndex, error) {
	if b.embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	unique := ingest.Dedupe(docs)
	vectors, err := ingest.EmbedAll(ctx, b.embedder, unique, b.cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build memory index", goerr.V("documents", len(unique)))
	}

	entries := make([]indexEntry, len(unique))
	for i, doc := range unique {
		entries[i] = indexEntry{doc: doc, vector: vectors[i]}
	}

	return &Index{
		embedder: b.embedder,
		modelID:  b.embedder.ModelID(),
		entries:  entries,
	}, nil
}

func (x *Index) Len() int {
	return len(x.entries)
}

func (x *Index) ModelID() string {
	return x.modelID
}

func (x *Index) Search(ctx context.Context, query string, k int) ([]*model.RetrievedDocument, error) {
	if k <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "k must be positive", goerr.V("k", k))
	}
	if got := x.embedder.ModelID(); got != x.modelID {
		return nil, goerr.Wrap(model.ErrEmbeddingModelMismatch, "query embedder differs from build embedder",
			goerr.V("index_model", x.modelID),
			goerr.V("query_model", got),
		)
	}
	if len(x.entries) == 0 {
		return []*model.RetrievedDocument{}, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, goerr.Wrap(model.ErrEmbeddingService, "embedding generation returned empty result")
	}
	queryVec := vectors[0]

	type scored struct {
		entry *indexEntry
		score float64
	}

	candidates := make([]scored, len(x.entries))
	for i := range x.entries {
		candidates[i] = scored{entry: &x.entries[i], score: cosineSimilarity(queryVec, x.entries[i].vector)}
	}

	// stable so equal scores keep ingestion order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	result := make([]*model.RetrievedDocument, k)
	for i := 0; i < k; i++ {
		result[i] = &model.RetrievedDocument{
			Document: candidates[i].entry.doc.Clone(),
			Score:    candidates[i].score,
		}
	}

	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
