// Package inbox stages files dropped into a watched directory.
package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/filex"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Stager is the part of services.FileService the watcher needs.
type Stager interface {
	AddPath(ctx context.Context, path string) (*models.FileRecord, error)
}

// Watcher stages every regular file that appears in dir once writes to it
// have gone quiet, then removes the source. Files that cannot be staged are
// left where they are.
type Watcher struct {
	dir    string
	stager Stager
	logger logging.Logger

	quiet    time.Duration
	tick     time.Duration
	onStaged func(*models.FileRecord)
}

type Option func(*Watcher)

// WithQuietPeriod sets how long a file must see no events before it is picked up.
func WithQuietPeriod(d time.Duration) Option {
	return func(w *Watcher) {
		w.quiet = d
		w.tick = max(d/2, 10*time.Millisecond)
	}
}

// WithOnStaged registers a callback for every staged file.
func WithOnStaged(fn func(*models.FileRecord)) Option {
	return func(w *Watcher) { w.onStaged = fn }
}

func New(dir string, stager Stager, logger logging.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = logging.Nop()
	}
	w := &Watcher{
		dir:    dir,
		stager: stager,
		logger: logger.With("module", "inbox"),
		quiet:  300 * time.Millisecond,
		tick:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func skipName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, "~")
}

// Run creates dir if needed, stages files already in it and then watches it
// until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	dir, err := filex.EnsureDir(w.dir)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return err
	}
	w.logger.Info(ctx, "watching inbox", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !skipName(e.Name()) {
			w.stage(ctx, filepath.Join(dir, e.Name()))
		}
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if skipName(filepath.Base(ev.Name)) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
				pending[ev.Name] = time.Now()
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			}

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) >= w.quiet {
					delete(pending, path)
					w.stage(ctx, path)
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watch error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) stage(ctx context.Context, path string) {
	fi, err := filex.WaitStable(path, w.tick/5+time.Millisecond, 5)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn(ctx, "inbox file not ready", "path", path, "error", err)
		}
		return
	}
	if !fi.Mode().IsRegular() {
		return
	}

	rec, err := w.stager.AddPath(ctx, path)
	switch {
	case errors.Is(err, common.ErrSizeExceeded), errors.Is(err, common.ErrStorageFull):
		w.logger.Warn(ctx, "inbox file rejected", "path", path, "size", fi.Size(), "error", err)
		return
	case err != nil:
		w.logger.Error(ctx, "inbox file not staged", "path", path, "error", err)
		return
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn(ctx, "staged inbox file could not be removed", "path", path, "error", err)
	}
	w.logger.Info(ctx, "inbox file staged", "path", path, "file_id", rec.ID)

	if w.onStaged != nil {
		w.onStaged(rec)
	}
}
