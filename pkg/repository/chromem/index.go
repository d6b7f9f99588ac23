package chromem

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/repository/ingest"
)

const collectionName = "documents"

// IndexBuilder builds indexes on an in-memory chromem-go database
type IndexBuilder struct {
	embedder interfaces.Embedder
	cfg      ingest.Config
}

var _ interfaces.IndexBuilder = &IndexBuilder{}

// Option configures an IndexBuilder
type Option func(*IndexBuilder)

// WithIngestConfig sets embedding concurrency and batch size
func WithIngestConfig(cfg ingest.Config) Option {
	return func(b *IndexBuilder) {
		b.cfg = cfg
	}
}

// NewIndexBuilder creates a chromem-backed builder
func NewIndexBuilder(embedder interfaces.Embedder, opts ...Option) *IndexBuilder {
	b := &IndexBuilder{embedder: embedder}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type indexedDoc struct {
	doc model.Document
	seq int
}

// Index wraps one chromem collection built from a full corpus
type Index struct {
	embedder   interfaces.Embedder
	modelID    string
	collection *chromem.Collection
	docs       map[string]indexedDoc
}

var _ interfaces.EmbeddingIndex = &Index{}

// toEmbeddingFunc adapts an Embedder to chromem's single-text signature
func toEmbeddingFunc(e interfaces.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		results, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, goerr.Wrap(model.ErrEmbeddingService, "no embedding returned")
		}
		return results[0], nil
	}
}

func (b *IndexBuilder) Build(ctx context.Context, docs []model.Document) (interfaces.EmbeddingIndex, error) {
	if b.embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	unique := ingest.Dedupe(docs)
	vectors, err := ingest.EmbedAll(ctx, b.embedder, unique, b.cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build chromem index", goerr.V("documents", len(unique)))
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, toEmbeddingFunc(b.embedder))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chromem collection")
	}

	chromDocs := make([]chromem.Document, len(unique))
	indexed := make(map[string]indexedDoc, len(unique))
	for i, doc := range unique {
		chromDocs[i] = chromem.Document{
			ID:        doc.ID.String(),
			Content:   doc.Content,
			Embedding: vectors[i],
		}
		indexed[doc.ID.String()] = indexedDoc{doc: doc, seq: i}
	}

	if len(chromDocs) > 0 {
		if err := col.AddDocuments(ctx, chromDocs, b.cfg.Concurrency+1); err != nil {
			return nil, goerr.Wrap(err, "failed to add documents to chromem collection")
		}
	}

	return &Index{
		embedder:   b.embedder,
		modelID:    b.embedder.ModelID(),
		collection: col,
		docs:       indexed,
	}, nil
}

func (x *Index) Len() int {
	return x.collection.Count()
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

	count := x.collection.Count()
	if count == 0 {
		return []*model.RetrievedDocument{}, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, goerr.Wrap(model.ErrEmbeddingService, "embedding generation returned empty result")
	}

	// chromem-go does not order ties, so rank the whole collection and
	// break ties by ingestion order before cutting to k.
	results, err := x.collection.QueryEmbedding(ctx, vectors[0], count, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "chromem query failed")
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return x.docs[results[i].ID].seq < x.docs[results[j].ID].seq
	})

	if k > len(results) {
		k = len(results)
	}

	out := make([]*model.RetrievedDocument, 0, k)
	for _, r := range results[:k] {
		indexed, ok := x.docs[r.ID]
		if !ok {
			return nil, goerr.New("chromem returned unknown document", goerr.V("id", r.ID))
		}
		out = append(out, &model.RetrievedDocument{
			Document: indexed.doc.Clone(),
			Score:    float64(r.Similarity),
		})
	}

	return out, nil
}
