package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/cli/config"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/usecase"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// indexConfig groups the flags needed to build an embedding index from a
// corpus. The LLM group is included because Gemini embeddings share its
// project and location.
type indexConfig struct {
	llm       config.LLM
	embedding config.Embedding
	index     config.Index
	corpus    config.Corpus
}

func (x *indexConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.llm.Flags()...)
	flags = append(flags, x.embedding.Flags()...)
	flags = append(flags, x.index.Flags()...)
	flags = append(flags, x.corpus.Flags()...)
	return flags
}

// corpusIndex is a built (or reopened) index with the means to rebuild it
type corpusIndex struct {
	live    *usecase.LiveIndex
	indexer *usecase.CorpusIndexer
	closers []func()
}

func (x *corpusIndex) Close() {
	for i := len(x.closers) - 1; i >= 0; i-- {
		x.closers[i]()
	}
}

// buildCorpusIndex configures embedder, index backend and corpus source and
// returns a live index. A reusable Firestore index is opened instead of
// rebuilt.
func (x *indexConfig) buildCorpusIndex(ctx context.Context) (*corpusIndex, error) {
	logger := logging.From(ctx)
	logger.Info("Index configuration",
		"embedding", x.embedding,
		slog.Group("index", attrsToAny(x.index.LogAttrs())...),
		"corpus", x.corpus,
	)

	embedder, err := x.embedding.Configure(ctx, &x.llm)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure embedder")
	}

	result := &corpusIndex{}
	store, err := x.index.Configure(ctx, embedder)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure index backend")
	}
	result.closers = append(result.closers, store.Close)

	source, closeSource, err := x.corpus.Configure(ctx)
	if err != nil {
		result.Close()
		return nil, goerr.Wrap(err, "failed to configure corpus")
	}
	result.closers = append(result.closers, closeSource)

	result.indexer = usecase.NewCorpusIndexer(source, store.Builder, x.corpus.IndexerOptions()...)

	var idx interfaces.EmbeddingIndex
	if store.Reusable() {
		idx, err = store.Open(ctx)
		if err != nil {
			logger.Warn("published index is not usable, rebuilding", "error", err)
		} else {
			logger.Info("reusing published index", "documents", idx.Len(), "model", idx.ModelID())
		}
	}
	if idx == nil {
		idx, err = result.indexer.Build(ctx)
		if err != nil {
			result.Close()
			return nil, err
		}
		result.live = usecase.NewLiveIndex(idx)
		if err := result.indexer.Prune(ctx); err != nil {
			logger.Warn("failed to prune superseded indexes", "error", err)
		}
		return result, nil
	}

	result.live = usecase.NewLiveIndex(idx)
	return result, nil
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
