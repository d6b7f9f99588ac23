package worker

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
)

// DefaultReloadDebounce is how long the corpus must stay quiet before a reload
const DefaultReloadDebounce = 2 * time.Second

// ReloadFunc rebuilds and publishes the index. A failed reload is logged
// and the worker keeps watching.
type ReloadFunc func(ctx context.Context) error

// CorpusReloadWorker watches a corpus directory and calls reload once
// changes settle. Bursts of events within the debounce window cause a
// single reload.
type CorpusReloadWorker struct {
	dir      string
	debounce time.Duration
	reload   ReloadFunc
	watcher  *fsnotify.Watcher
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewCorpusReloadWorker(dir string, debounce time.Duration, reload ReloadFunc) *CorpusReloadWorker {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	return &CorpusReloadWorker{
		dir:      dir,
		debounce: debounce,
		reload:   reload,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins watching. It returns an error when the directory cannot be
// watched or the worker was already started.
func (w *CorpusReloadWorker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return goerr.New("corpus reload worker already started", goerr.V("dir", w.dir))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.started.Store(false)
		return goerr.Wrap(err, "failed to create file watcher")
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.started.Store(false)
		return goerr.Wrap(err, "failed to watch corpus directory", goerr.V("dir", w.dir))
	}
	w.watcher = watcher

	logging.From(ctx).Info("corpus reload worker starting",
		"dir", w.dir,
		"debounce", w.debounce.String(),
	)

	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for completion. It may be
// called more than once, and returns at once if the worker never started.
func (w *CorpusReloadWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if w.started.Load() {
		<-w.doneCh
	}
}

func (w *CorpusReloadWorker) run(ctx context.Context) {
	defer close(w.doneCh)
	defer func() {
		if err := w.watcher.Close(); err != nil {
			logging.From(ctx).Warn("failed to close file watcher", "error", err.Error())
		}
	}()

	logger := logging.From(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			logger.Debug("corpus changed", "name", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "error", err.Error())

		case <-timer.C:
			started := time.Now()
			if err := w.reload(ctx); err != nil {
				logger.Error("corpus reload failed, previous index is still served",
					"error", err.Error(),
				)
				continue
			}
			logger.Info("corpus reloaded", "elapsed", time.Since(started).String())

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
