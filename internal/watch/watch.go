// Package watch re-runs generators when worker sources change.
//
// Overview:
//   - Responsibility: Recursive fsnotify watch with debounced change batches
//   - Key Types: Watcher, Config, Handler
//   - Concurrency Model: One event loop goroutine (the caller of Run); the handler
//     runs on that goroutine, so batches never overlap
//   - Error Semantics: Handler and watch errors are logged and the loop continues;
//     Run returns when ctx is done or the watcher cannot start
//   - Performance Notes: One watch per directory; events are coalesced per debounce window
//
// Usage:
//
//	w, err := watch.New(root, []string{"src/workers"}, watch.DefaultConfig(), logger, handler)
//	err = w.Run(ctx)
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"go.eggybyte.com/egg/workerkit/configx"
	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/core/log"
)

// Config controls event filtering and batching.
type Config struct {
	Debounce  time.Duration `env:"WATCH_DEBOUNCE" default:"500ms" validate:"min=1ms"`
	Extension string        `env:"WORKER_EXTENSION" default:".py" validate:"required,startswith=."`
}

// DefaultConfig returns the configuration built from the `default` tags.
func DefaultConfig() Config {
	var cfg Config
	_ = configx.Bind(map[string]string{}, &cfg)
	return cfg
}

// Handler receives one batch of changed, root-relative paths.
type Handler func(ctx context.Context, changed []string) error

// Watcher watches directories below a project root.
type Watcher struct {
	root    string
	dirs    []string
	cfg     Config
	logger  log.Logger
	handler Handler
	ready   chan struct{}
}

// New creates a Watcher for dirs, given relative to root.
func New(root string, dirs []string, cfg Config, logger log.Logger, handler Handler) (*Watcher, error) {
	if err := configx.ValidateStruct(nil, &cfg); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "watch config", err)
	}
	if handler == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "watch handler is required")
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Watcher{
		root:    root,
		dirs:    dirs,
		cfg:     cfg,
		logger:  log.OrNop(logger),
		handler: handler,
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once every directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done.
//
// Parameters:
//   - ctx: Stops the loop; a pending batch is dropped
//
// Returns:
//   - error: FAILED_PRECONDITION when none of the directories exist,
//     UNAVAILABLE when fsnotify cannot start; nil after ctx is done
//
// Concurrency:
//   - Blocks; call once
//
// Performance:
//   - Idle between events
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "start watcher", err)
	}
	defer fw.Close()

	watched := 0
	for _, dir := range w.dirs {
		abs := filepath.Join(w.root, filepath.FromSlash(dir))
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			w.logger.Warn("watch directory missing", log.Str("dir", dir))
			continue
		}
		if err := w.addRecursive(fw, abs, nil); err != nil {
			return errors.Wrap(errors.CodeUnavailable, "start watcher", err)
		}
		watched++
	}
	if watched == 0 {
		return errors.New(errors.CodeFailedPrecondition, fmt.Sprintf("no directory to watch among %v", w.dirs))
	}
	close(w.ready)
	w.logger.Info("watching", log.Str("root", w.root), log.Dur("debounce", w.cfg.Debounce))

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.collect(fw, event, pending) {
				timer.Reset(w.cfg.Debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err, "watch error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			sort.Strings(batch)

			w.logger.Debug("change batch", log.Int("files", len(batch)))
			if err := w.handler(ctx, batch); err != nil {
				w.logger.Error(err, "regeneration failed")
			}
		}
	}
}

// collect records the source files touched by event and reports whether
// anything was recorded. New directories are watched and scanned, since
// files created inside them before the watch was added produce no events.
func (w *Watcher) collect(fw *fsnotify.Watcher, event fsnotify.Event, pending map[string]struct{}) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			before := len(pending)
			if err := w.addRecursive(fw, event.Name, pending); err != nil {
				w.logger.Error(err, "failed to watch new directory", log.Str("dir", event.Name))
			}
			return len(pending) > before
		}
	}

	if filepath.Ext(event.Name) != w.cfg.Extension {
		return false
	}
	pending[w.rel(event.Name)] = struct{}{}
	return true
}

// addRecursive watches dir and its subdirectories. When found is non-nil,
// source files already present are added to it.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string, found map[string]struct{}) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", log.Str("path", path))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if found != nil && filepath.Ext(path) == w.cfg.Extension {
			found[w.rel(path)] = struct{}{}
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
