// Package ingest holds the build steps shared by every embedding index
// backend: collapsing duplicate ids and embedding a corpus all-or-nothing.
package ingest

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultBatchSize   = 16
)

// Config controls how a corpus is embedded
type Config struct {
	Concurrency int
	BatchSize   int
}

func (c Config) normalize() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// Dedupe returns documents in ingestion order with one entry per id. A
// later document with an already seen id replaces the earlier content but
// keeps the earlier position.
func Dedupe(docs []model.Document) []model.Document {
	slots := make(map[model.DocumentID]int, len(docs))
	out := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if i, ok := slots[doc.ID]; ok {
			out[i] = doc.Clone()
			continue
		}
		slots[doc.ID] = len(out)
		out = append(out, doc.Clone())
	}
	return out
}

// EmbedAll embeds the content of every document. Batches run concurrently
// but any failure cancels the rest and no vectors are returned.
func EmbedAll(ctx context.Context, embedder interfaces.Embedder, docs []model.Document, cfg Config) ([][]float32, error) {
	cfg = cfg.normalize()
	vectors := make([][]float32, len(docs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Concurrency)

	for start := 0; start < len(docs); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(docs))

		eg.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, doc := range docs[start:end] {
				texts = append(texts, doc.Content)
			}

			embedded, err := embedder.Embed(ctx, texts)
			if err != nil {
				return goerr.Wrap(err, "failed to embed documents",
					goerr.V("first_id", docs[start].ID),
					goerr.V("count", len(texts)),
				)
			}
			if len(embedded) != len(texts) {
				return goerr.Wrap(model.ErrEmbeddingService, "embedding count mismatch",
					goerr.V("expected", len(texts)),
					goerr.V("actual", len(embedded)),
				)
			}

			// each goroutine owns a disjoint range of vectors
			copy(vectors[start:end], embedded)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}
