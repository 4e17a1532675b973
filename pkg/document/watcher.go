package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/scribe/internal/logging"
)

// DefaultDebounce is the quiet period a file must respect before it is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger for watch errors and reloads.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithOnChange is called after every reload with the events Update produced.
func WithOnChange(fn func([]ChangeEvent)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// Watcher reloads a Document when its backing file changes.
//
// The parent directory is watched rather than the file itself so that editors
// that save by renaming a temp file over the original keep being tracked.
type Watcher struct {
	path     string
	doc      *Document
	debounce time.Duration
	logger   *slog.Logger
	onChange func([]ChangeEvent)

	watcher *fsnotify.Watcher
	done    chan struct{}

	timerMu  sync.Mutex
	timer    *time.Timer
	stopOnce sync.Once
}

// NewWatcher prepares a watcher for path feeding doc.
func NewWatcher(path string, doc *Document, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		doc:      doc,
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
		watcher:  fw,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run loads the file once, then reloads it on every change until ctx is
// cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Stop()

	if err := w.reload(); err != nil {
		return err
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.Info("Watching document", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "err", err)
		}
	}
}

// Stop ends Run and releases the underlying watcher. Safe to call twice.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()

		_ = w.watcher.Close()
	})
}

func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if err := w.reload(); err != nil {
			w.logger.Warn("Reload failed", "path", w.path, "err", err)
		}
	})
}

func (w *Watcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.path, err)
	}
	events := w.doc.Update(data)
	w.logger.Debug("Document reloaded", "path", w.path, "changes", len(events))
	if w.onChange != nil {
		w.onChange(events)
	}
	return nil
}
