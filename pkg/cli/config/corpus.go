package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/service/corpus"
	"github.com/secmon-lab/ragguard/pkg/service/worker"
	"github.com/secmon-lab/ragguard/pkg/usecase"
	"github.com/secmon-lab/ragguard/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// Corpus holds CLI flags for the document corpus
type Corpus struct {
	dir         string
	gcsBucket   string
	gcsPrefix   string
	rejectEmpty bool
	watch       bool
	debounce    time.Duration
}

// Flags returns CLI flags for corpus configuration
func (x *Corpus) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "corpus-dir",
			Usage:       "Directory of plain text documents",
			Value:       "docs",
			Sources:     cli.EnvVars("RAGGUARD_CORPUS_DIR"),
			Destination: &x.dir,
		},
		&cli.StringFlag{
			Name:        "corpus-gcs-bucket",
			Usage:       "Cloud Storage bucket to load documents from instead of corpus-dir",
			Sources:     cli.EnvVars("RAGGUARD_CORPUS_GCS_BUCKET"),
			Destination: &x.gcsBucket,
		},
		&cli.StringFlag{
			Name:        "corpus-gcs-prefix",
			Usage:       "Object prefix inside corpus-gcs-bucket",
			Sources:     cli.EnvVars("RAGGUARD_CORPUS_GCS_PREFIX"),
			Destination: &x.gcsPrefix,
		},
		&cli.BoolFlag{
			Name:        "reject-empty-corpus",
			Usage:       "Fail instead of serving an empty index when the corpus has no documents",
			Sources:     cli.EnvVars("RAGGUARD_REJECT_EMPTY_CORPUS"),
			Destination: &x.rejectEmpty,
		},
		&cli.BoolFlag{
			Name:        "watch",
			Usage:       "Rebuild the index when files in corpus-dir change",
			Sources:     cli.EnvVars("RAGGUARD_WATCH"),
			Destination: &x.watch,
		},
		&cli.DurationFlag{
			Name:        "watch-debounce",
			Usage:       "Quiet period before a changed corpus is reloaded",
			Value:       worker.DefaultReloadDebounce,
			Sources:     cli.EnvVars("RAGGUARD_WATCH_DEBOUNCE"),
			Destination: &x.debounce,
		},
	}
}

// LogValue implements slog.LogValuer
func (x Corpus) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("dir", x.dir),
		slog.String("gcs_bucket", x.gcsBucket),
		slog.String("gcs_prefix", x.gcsPrefix),
		slog.Bool("reject_empty", x.rejectEmpty),
		slog.Bool("watch", x.watch),
	)
}

// IndexerOptions returns options for usecase.NewCorpusIndexer
func (x *Corpus) IndexerOptions() []usecase.CorpusIndexerOption {
	return []usecase.CorpusIndexerOption{usecase.WithRejectEmptyCorpus(x.rejectEmpty)}
}

// Configure returns the corpus source and a function releasing it
func (x *Corpus) Configure(ctx context.Context) (interfaces.CorpusSource, func(), error) {
	if x.gcsBucket != "" {
		src, err := corpus.NewGCS(ctx, x.gcsBucket, x.gcsPrefix)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to configure GCS corpus")
		}
		return src, safe.Closer(ctx, "gcs corpus", src), nil
	}

	if x.dir == "" {
		return nil, nil, goerr.Wrap(ErrMissingRequired, "corpus-dir or corpus-gcs-bucket is required")
	}
	src, err := corpus.NewDir(x.dir)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure corpus directory")
	}
	return src, func() {}, nil
}

// Watcher returns a reload worker for the corpus directory, or nil when
// watching is disabled. Cloud Storage corpora are not watched.
func (x *Corpus) Watcher(reload worker.ReloadFunc) (*worker.CorpusReloadWorker, error) {
	if !x.watch {
		return nil, nil
	}
	if x.gcsBucket != "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "watch is only supported for corpus-dir")
	}
	return worker.NewCorpusReloadWorker(x.dir, x.debounce, reload), nil
}
