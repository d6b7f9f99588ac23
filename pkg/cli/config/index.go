package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/repository/chromem"
	"github.com/secmon-lab/ragguard/pkg/repository/firestore"
	"github.com/secmon-lab/ragguard/pkg/repository/ingest"
	"github.com/secmon-lab/ragguard/pkg/repository/memory"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Index holds CLI flags for the embedding index backend
type Index struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	reuse            bool
	retain           int
	pruneGrace       time.Duration
	concurrency      int
	batchSize        int
}

// Flags returns CLI flags for index configuration
func (x *Index) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "index-backend",
			Usage:       "Embedding index backend (memory, chromem or firestore)",
			Value:       "memory",
			Sources:     cli.EnvVars("RAGGUARD_INDEX_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("RAGGUARD_FIRESTORE_PROJECT_ID"),
			Destination: &x.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("RAGGUARD_FIRESTORE_DATABASE_ID"),
			Destination: &x.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of Firestore collections used by the index",
			Sources:     cli.EnvVars("RAGGUARD_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &x.collectionPrefix,
		},
		&cli.BoolFlag{
			Name:        "reuse-index",
			Usage:       "Open the last published Firestore index instead of rebuilding it",
			Sources:     cli.EnvVars("RAGGUARD_REUSE_INDEX"),
			Destination: &x.reuse,
		},
		&cli.IntFlag{
			Name:        "retain-generations",
			Usage:       "Number of superseded Firestore index generations kept after a rebuild",
			Value:       firestore.DefaultRetainGenerations,
			Sources:     cli.EnvVars("RAGGUARD_RETAIN_GENERATIONS"),
			Destination: &x.retain,
		},
		&cli.DurationFlag{
			Name:        "prune-grace",
			Usage:       "How long a superseded Firestore index generation stays readable",
			Value:       firestore.DefaultPruneGrace,
			Sources:     cli.EnvVars("RAGGUARD_PRUNE_GRACE"),
			Destination: &x.pruneGrace,
		},
		&cli.IntFlag{
			Name:        "embedding-concurrency",
			Usage:       "Number of concurrent embedding requests during index build",
			Value:       ingest.DefaultConcurrency,
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_CONCURRENCY"),
			Destination: &x.concurrency,
		},
		&cli.IntFlag{
			Name:        "embedding-batch-size",
			Usage:       "Number of documents per embedding request",
			Value:       ingest.DefaultBatchSize,
			Sources:     cli.EnvVars("RAGGUARD_EMBEDDING_BATCH_SIZE"),
			Destination: &x.batchSize,
		},
	}
}

// LogAttrs returns log attributes for the index configuration
func (x *Index) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", x.backend),
		slog.String("project_id", x.projectID),
		slog.String("database_id", x.databaseID),
		slog.Bool("reuse", x.reuse),
		slog.Int("concurrency", x.concurrency),
		slog.Int("batch_size", x.batchSize),
	}
}

// Backend returns the configured backend type
func (x *Index) Backend() string {
	return x.backend
}

// ProjectID returns the Firestore project ID
func (x *Index) ProjectID() string {
	return x.projectID
}

// DatabaseID returns the Firestore database ID
func (x *Index) DatabaseID() string {
	return x.databaseID
}

// IndexStore bundles the configured builder with what is needed to reuse
// or release it.
type IndexStore struct {
	Builder interfaces.IndexBuilder

	reuse  bool
	opener func(ctx context.Context) (interfaces.EmbeddingIndex, error)
	closer func() error
}

// Reusable reports whether a previously published index should be opened
// instead of building a new one.
func (x *IndexStore) Reusable() bool {
	return x.reuse && x.opener != nil
}

// Open returns the previously published index
func (x *IndexStore) Open(ctx context.Context) (interfaces.EmbeddingIndex, error) {
	if x.opener == nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "index backend cannot reopen a published index")
	}
	return x.opener(ctx)
}

// Close releases backend resources
func (x *IndexStore) Close() {
	if x.closer == nil {
		return
	}
	if err := x.closer(); err != nil {
		logging.Default().Warn("failed to close index backend", "error", err)
	}
}

// Configure creates the index builder for embedder. The caller must Close
// the returned store.
func (x *Index) Configure(ctx context.Context, embedder interfaces.Embedder) (*IndexStore, error) {
	cfg := ingest.Config{Concurrency: x.concurrency, BatchSize: x.batchSize}

	switch x.backend {
	case "memory":
		logging.Default().Info("Using in-memory embedding index")
		return &IndexStore{Builder: memory.NewIndexBuilder(embedder, memory.WithIngestConfig(cfg))}, nil

	case "chromem":
		logging.Default().Info("Using chromem embedding index")
		return &IndexStore{Builder: chromem.NewIndexBuilder(embedder, chromem.WithIngestConfig(cfg))}, nil

	case "firestore":
		if x.projectID == "" {
			return nil, goerr.Wrap(ErrMissingRequired, "firestore-project-id is required when using firestore backend")
		}
		builder, err := firestore.New(ctx, x.projectID, x.databaseID, embedder,
			firestore.WithCollectionPrefix(x.collectionPrefix),
			firestore.WithIngestConfig(cfg),
			firestore.WithRetention(x.retain, x.pruneGrace),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore index")
		}
		logging.Default().Info("Using Firestore embedding index",
			"project_id", x.projectID,
			"database_id", x.databaseID,
		)
		return &IndexStore{
			Builder: builder,
			reuse:   x.reuse,
			opener:  builder.Open,
			closer:  builder.Close,
		}, nil

	default:
		return nil, goerr.Wrap(ErrUnknownBackend, "invalid index backend", goerr.V("backend", x.backend))
	}
}
