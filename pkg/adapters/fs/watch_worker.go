package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/jotter/pkg/core"
)

// watchWorker turns note files that appear in the directory into
// onCreateTodo events. Rewrites of known notes (updates) are not creates.
type watchWorker struct {
	*worker.BaseWorker
	repo      *Repository
	publish   func(core.Note)
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc

	seenMu sync.Mutex
	seen   map[string]struct{}
}

func newWatchWorker(repo *Repository, publish func(core.Note)) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		publish:    publish,
		seen:       make(map[string]struct{}),
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.repo.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.repo.Path, err)
	}

	// Files present before the watch began are not creates.
	if err := w.scan(); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.repo.config.Debounce)
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"path":              w.repo.Path,
		}
	})
}

func (w *watchWorker) scan() error {
	entries, err := os.ReadDir(w.repo.Path)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", w.repo.Path, err)
	}
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	for _, e := range entries {
		if !e.IsDir() && w.repo.matches(e.Name()) {
			w.seen[idFromName(e.Name())] = struct{}{}
		}
	}
	return nil
}

func idFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// markSeen records id and reports whether it was new.
func (w *watchWorker) markSeen(id string) bool {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	return true
}

func (w *watchWorker) forget(id string) {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	delete(w.seen, id)
}

func (w *watchWorker) isSeen(id string) bool {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	_, ok := w.seen[id]
	return ok
}

// processFilesystemEvent filters and debounces one fsnotify event.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) {
	logger := w.repo.config.Logger
	logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	rel, err := filepath.Rel(w.repo.Path, event.Name)
	if err != nil || !w.repo.matches(rel) {
		return
	}
	id := idFromName(rel)

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if _, err := os.Stat(event.Name); errors.Is(err, fs.ErrNotExist) {
			w.forget(id)
		}
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		if w.isSeen(id) {
			return
		}
		path := event.Name
		w.debouncer.add(path, func() {
			w.emit(ctx, id, path)
		})
	}
}

// emit reads a settled new file and publishes it.
func (w *watchWorker) emit(ctx context.Context, id, path string) {
	if ctx.Err() != nil {
		return
	}
	rec, err := readRecord(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		// Not yet valid; a later write will retry.
		w.handleWatcherError(fmt.Errorf("failed to read new note %s: %w", id, err))
		return
	}
	if rec.ID != id {
		rec.ID = id
	}
	if !w.markSeen(id) {
		return
	}
	w.repo.recordEvent()
	w.publish(rec.Note)
}

func (w *watchWorker) handleWatcherError(err error) {
	w.repo.config.Logger.Error("watcher error", "error", err)
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.repo.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}

// ensureWatcher starts the supervised watcher once.
func (r *Repository) ensureWatcher() error {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.sup != nil {
		return nil
	}

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(r, r.broker.Publish), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     10,
			MaxDuration:     10 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup := supervisor.New("notes-watcher", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	r.sup = sup
	r.supCancel = cancel
	return nil
}

// debouncer delays a callback per key until events for that key go quiet.
type debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

func (d *debouncer) add(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// stopAndWait cancels pending callbacks and waits for running ones.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
