package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
)

// CorpusIndexer loads a corpus source and builds an embedding index from it
type CorpusIndexer struct {
	source      interfaces.CorpusSource
	builder     interfaces.IndexBuilder
	rejectEmpty bool
}

// CorpusIndexerOption configures a CorpusIndexer
type CorpusIndexerOption func(*CorpusIndexer)

// WithRejectEmptyCorpus makes Build fail with ErrEmptyCorpus when the
// source yields no documents. By default an empty index is built.
func WithRejectEmptyCorpus(reject bool) CorpusIndexerOption {
	return func(c *CorpusIndexer) {
		c.rejectEmpty = reject
	}
}

func NewCorpusIndexer(source interfaces.CorpusSource, builder interfaces.IndexBuilder, opts ...CorpusIndexerOption) *CorpusIndexer {
	c := &CorpusIndexer{source: source, builder: builder}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build loads every document and embeds the whole corpus. It returns no
// index unless every document was embedded.
func (c *CorpusIndexer) Build(ctx context.Context) (interfaces.EmbeddingIndex, error) {
	logger := logging.From(ctx)
	started := time.Now()

	docs, err := LoadDocuments(ctx, c.source)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		if c.rejectEmpty {
			return nil, goerr.Wrap(model.ErrEmptyCorpus, "refusing to build empty index", goerr.V("source", c.source.Name()))
		}
		logger.Warn("corpus has no documents, every retrieval will be empty", "source", c.source.Name())
	}

	idx, err := c.builder.Build(ctx, docs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build embedding index", goerr.V("source", c.source.Name()))
	}

	logger.Info("embedding index built",
		"source", c.source.Name(),
		"documents", idx.Len(),
		"model", idx.ModelID(),
		"elapsed", time.Since(started).String(),
	)
	return idx, nil
}

// Prune lets the builder drop indexes it built earlier and no longer
// publishes. Builders that keep nothing beyond the returned index have
// nothing to prune.
func (c *CorpusIndexer) Prune(ctx context.Context) error {
	pruner, ok := c.builder.(interfaces.IndexPruner)
	if !ok {
		return nil
	}
	if err := pruner.Prune(ctx); err != nil {
		return goerr.Wrap(err, "failed to prune superseded indexes", goerr.V("source", c.source.Name()))
	}
	return nil
}

// LiveIndex serves searches from the most recently published index.
// Publish swaps in a complete index atomically, so a search always runs
// against exactly one fully built index.
type LiveIndex struct {
	current atomic.Pointer[liveIndexHolder]
}

type liveIndexHolder struct {
	index interfaces.EmbeddingIndex
}

var _ interfaces.EmbeddingIndex = &LiveIndex{}

func NewLiveIndex(initial interfaces.EmbeddingIndex) *LiveIndex {
	x := &LiveIndex{}
	x.Publish(initial)
	return x
}

// Publish replaces the served index
func (x *LiveIndex) Publish(idx interfaces.EmbeddingIndex) {
	x.current.Store(&liveIndexHolder{index: idx})
}

// Current returns the index searches are served from
func (x *LiveIndex) Current() interfaces.EmbeddingIndex {
	return x.current.Load().index
}

// Rebuild builds a fresh index with indexer and publishes it. When the
// build fails the previous index keeps serving and the error is returned.
// Superseded indexes are pruned only once the new one is published.
func (x *LiveIndex) Rebuild(ctx context.Context, indexer *CorpusIndexer) error {
	idx, err := indexer.Build(ctx)
	if err != nil {
		return goerr.Wrap(err, "corpus rebuild failed, keeping previous index")
	}
	x.Publish(idx)

	if err := indexer.Prune(ctx); err != nil {
		logging.From(ctx).Warn("failed to prune superseded indexes", "error", err.Error())
	}
	return nil
}

func (x *LiveIndex) Search(ctx context.Context, query string, k int) ([]*model.RetrievedDocument, error) {
	return x.Current().Search(ctx, query, k)
}

func (x *LiveIndex) Len() int {
	return x.Current().Len()
}

func (x *LiveIndex) ModelID() string {
	return x.Current().ModelID()
}
