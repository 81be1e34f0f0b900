// Package memory provides an in-process notes backend.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/jotter/internal/broker"
	"github.com/aretw0/jotter/pkg/core"
)

// Repository implements core.Backend and core.Subscriber in memory.
type Repository struct {
	mu     sync.RWMutex
	notes  map[string]core.Note
	order  []string
	broker *broker.Broker
}

// NewRepository creates an empty repository. A nil logger means slog.Default().
func NewRepository(logger *slog.Logger) *Repository {
	return &Repository{
		notes:  make(map[string]core.Note),
		broker: broker.New(broker.DefaultBuffer, logger),
	}
}

// ListTodos returns all notes, newest first.
func (r *Repository) ListTodos(ctx context.Context) ([]core.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Note, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.notes[r.order[i]])
	}
	return out, nil
}

// CreateTodo stores n and notifies subscribers.
func (r *Repository) CreateTodo(ctx context.Context, n core.Note) (core.Note, error) {
	if n.ID == "" {
		return core.Note{}, core.ErrInvalidID
	}

	r.mu.Lock()
	if _, exists := r.notes[n.ID]; exists {
		r.mu.Unlock()
		return core.Note{}, fmt.Errorf("create %s: %w", n.ID, core.ErrConflict)
	}
	r.notes[n.ID] = n
	r.order = append(r.order, n.ID)
	r.mu.Unlock()

	r.broker.Publish(n)
	return n, nil
}

// UpdateTodo sets the completion flag of an existing note.
func (r *Repository) UpdateTodo(ctx context.Context, in core.UpdateInput) (core.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[in.ID]
	if !ok {
		return core.Note{}, fmt.Errorf("update %s: %w", in.ID, core.ErrNotFound)
	}
	n.Completed = in.Completed
	r.notes[in.ID] = n
	return n, nil
}

// DeleteTodo removes a note.
func (r *Repository) DeleteTodo(ctx context.Context, in core.DeleteInput) (core.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[in.ID]
	if !ok {
		return core.Note{}, fmt.Errorf("delete %s: %w", in.ID, core.ErrNotFound)
	}
	delete(r.notes, in.ID)
	for i, id := range r.order {
		if id == in.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return n, nil
}

// OnCreateTodo subscribes to created notes.
func (r *Repository) OnCreateTodo(ctx context.Context) (core.Subscription, error) {
	return r.broker.Subscribe(ctx), nil
}

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Notes       int `json:"notes"`
	Subscribers int `json:"subscribers"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RepositoryState{
		Notes:       len(r.notes),
		Subscribers: r.broker.Len(),
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "memory"
}

var (
	_ core.Backend                 = (*Repository)(nil)
	_ core.Subscriber              = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
