package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/arsandbox/sandscape/logging"
)

// A Watcher re-reads a config file whenever it changes on disk and delivers each valid result.
// Rewrites that fail to parse or validate are logged and skipped.
type Watcher struct {
	path    string
	logger  logging.Logger
	watcher *fsnotify.Watcher
	configs chan *Config

	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewWatcher starts watching the config file at path. The directory is watched rather than the
// file so that editors replacing the file through a rename are noticed.
func NewWatcher(ctx context.Context, path string, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		goutils.UncheckedError(fsw.Close())
		return nil, errors.Wrapf(err, "failed to watch %q", path)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:    abs,
		logger:  logger,
		watcher: fsw,
		configs: make(chan *Config),
		cancel:  cancel,
	}
	w.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer w.activeBackgroundWorkers.Done()
		w.watch(cancelCtx)
	})
	return w, nil
}

// Config returns the channel new configs are delivered on.
func (w *Watcher) Config() <-chan *Config {
	return w.configs
}

func (w *Watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorw("config watcher error", "error", err)
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := Read(w.path)
			if err != nil {
				w.logger.Errorw("ignoring invalid config change", "path", w.path, "error", err)
				continue
			}
			w.logger.Infow("config changed", "path", w.path)
			select {
			case <-ctx.Done():
				return
			case w.configs <- cfg:
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.activeBackgroundWorkers.Wait()
	return err
}
