// Package fs stores notes as one YAML file per note in a directory and
// turns files appearing in it into onCreateTodo events.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/jotter/internal/broker"
	"github.com/aretw0/jotter/pkg/core"
)

// Extension of note files.
const Extension = ".yaml"

// record is the on-disk form of a note.
type record struct {
	core.Note `yaml:",inline"`
	CreatedAt time.Time `yaml:"createdAt,omitempty"`
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	MustExist    bool
	Pattern      string        // doublestar glob of note files relative to Path (default "*.yaml")
	Debounce     time.Duration // quiet period before a new file is read (default 50ms)
	Logger       *slog.Logger
	ErrorHandler func(error) // receives watcher runtime errors
}

// Repository implements core.Backend and core.Subscriber on a directory.
type Repository struct {
	Path   string
	config Config
	broker *broker.Broker

	// mu serializes file mutations.
	mu sync.RWMutex

	stateMu       sync.RWMutex
	watcherActive bool
	lastEvent     *time.Time

	watchMu   sync.Mutex
	sup       runner
	supCancel context.CancelFunc
}

// runner is the part of the lifecycle supervisor the repository drives.
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NewRepository creates a filesystem-backed repository. Call Initialize before use.
func NewRepository(config Config) *Repository {
	if config.Pattern == "" {
		config.Pattern = "*" + Extension
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Repository{
		Path:   config.Path,
		config: config,
		broker: broker.New(broker.DefaultBuffer, config.Logger),
	}
}

// Initialize ensures the directory exists.
func (r *Repository) Initialize(ctx context.Context) error {
	if !doublestar.ValidatePattern(r.config.Pattern) {
		return fmt.Errorf("invalid note pattern %q", r.config.Pattern)
	}

	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("notes path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("notes path is not a directory: %s", r.Path)
		}
		return nil
	}

	if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}
	return nil
}

// pathFor maps an id to its file, rejecting ids that would escape the directory.
func (r *Repository) pathFor(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, TempFilePrefix) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidID, id)
	}
	return filepath.Join(r.Path, id+Extension), nil
}

// matches reports whether a path relative to the root is a note file.
func (r *Repository) matches(rel string) bool {
	if strings.HasPrefix(filepath.Base(rel), TempFilePrefix) {
		return false
	}
	ok, err := doublestar.Match(r.config.Pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// ListTodos reads every note file, newest first.
func (r *Repository) ListTodos(ctx context.Context) ([]core.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches, err := doublestar.Glob(os.DirFS(r.Path), r.config.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	records := make([]record, 0, len(matches))
	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.matches(rel) {
			continue
		}
		full := filepath.Join(r.Path, filepath.FromSlash(rel))
		rec, err := readRecord(full)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			r.config.Logger.Warn("skipping unreadable note", "path", rel, "error", err)
			continue
		}
		if rec.CreatedAt.IsZero() {
			if info, err := os.Stat(full); err == nil {
				rec.CreatedAt = info.ModTime()
			}
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	notes := make([]core.Note, 0, len(records))
	for _, rec := range records {
		notes = append(notes, rec.Note)
	}
	return notes, nil
}

// CreateTodo writes a new note file. Subscribers hear about it through the watcher.
func (r *Repository) CreateTodo(ctx context.Context, n core.Note) (core.Note, error) {
	path, err := r.pathFor(n.ID)
	if err != nil {
		return core.Note{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return core.Note{}, fmt.Errorf("create %s: %w", n.ID, core.ErrConflict)
	}
	if err := writeRecord(path, record{Note: n, CreatedAt: time.Now().UTC()}); err != nil {
		return core.Note{}, err
	}
	r.config.Logger.Debug("note created", "id", n.ID)
	return n, nil
}

// UpdateTodo rewrites the completion flag of a note file.
func (r *Repository) UpdateTodo(ctx context.Context, in core.UpdateInput) (core.Note, error) {
	path, err := r.pathFor(in.ID)
	if err != nil {
		return core.Note{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := readRecord(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Note{}, fmt.Errorf("update %s: %w", in.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.Note{}, err
	}
	rec.Completed = in.Completed
	if err := writeRecord(path, rec); err != nil {
		return core.Note{}, err
	}
	return rec.Note, nil
}

// DeleteTodo removes a note file.
func (r *Repository) DeleteTodo(ctx context.Context, in core.DeleteInput) (core.Note, error) {
	path, err := r.pathFor(in.ID)
	if err != nil {
		return core.Note{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := readRecord(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Note{}, fmt.Errorf("delete %s: %w", in.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.Note{}, err
	}
	if err := os.Remove(path); err != nil {
		return core.Note{}, fmt.Errorf("failed to delete note %s: %w", in.ID, err)
	}
	return rec.Note, nil
}

// OnCreateTodo subscribes to notes appearing in the directory, whoever
// wrote them. The watcher starts with the first subscription and runs
// until Close.
func (r *Repository) OnCreateTodo(ctx context.Context) (core.Subscription, error) {
	if err := r.ensureWatcher(); err != nil {
		return nil, err
	}
	return r.broker.Subscribe(ctx), nil
}

// Close stops the watcher, if running.
func (r *Repository) Close(ctx context.Context) error {
	r.watchMu.Lock()
	sup, cancel := r.sup, r.supCancel
	r.sup, r.supCancel = nil, nil
	r.watchMu.Unlock()

	if sup == nil {
		return nil
	}
	defer cancel()
	return sup.Stop(ctx)
}

var (
	_ core.Backend    = (*Repository)(nil)
	_ core.Subscriber = (*Repository)(nil)
)
