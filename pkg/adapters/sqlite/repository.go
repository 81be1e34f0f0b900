// Package sqlite stores notes in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/introspection"
	"github.com/mattn/go-sqlite3"

	"github.com/aretw0/jotter/internal/broker"
	"github.com/aretw0/jotter/pkg/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	completed   INTEGER NOT NULL DEFAULT 0,
	client_id   TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos(created_at);
`

const noteColumns = `id, name, description, completed, client_id`

// Repository implements core.Backend and core.Subscriber on a todos table.
type Repository struct {
	db     *sql.DB
	dsn    string
	broker *broker.Broker
	logger *slog.Logger
}

// Open opens (creating if needed) the database at dsn and ensures the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db:     db,
		dsn:    dsn,
		broker: broker.New(broker.DefaultBuffer, logger),
		logger: logger,
	}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (core.Note, error) {
	var n core.Note
	if err := row.Scan(&n.ID, &n.Name, &n.Description, &n.Completed, &n.ClientID); err != nil {
		return core.Note{}, err
	}
	return n, nil
}

// ListTodos returns all notes, newest first.
func (r *Repository) ListTodos(ctx context.Context) ([]core.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM todos ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list todos failed: %w", err)
	}
	defer rows.Close()

	notes := []core.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo failed: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos failed: %w", err)
	}
	return notes, nil
}

// CreateTodo inserts n and notifies subscribers.
func (r *Repository) CreateTodo(ctx context.Context, n core.Note) (core.Note, error) {
	if n.ID == "" {
		return core.Note{}, core.ErrInvalidID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO todos (id, name, description, completed, client_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Name, n.Description, n.Completed, n.ClientID, time.Now().UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return core.Note{}, fmt.Errorf("create %s: %w", n.ID, core.ErrConflict)
		}
		return core.Note{}, fmt.Errorf("create todo failed: %w", err)
	}

	r.logger.Debug("note created", "id", n.ID)
	r.broker.Publish(n)
	return n, nil
}

// UpdateTodo sets the completion flag of an existing note.
func (r *Repository) UpdateTodo(ctx context.Context, in core.UpdateInput) (core.Note, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE todos SET completed = ? WHERE id = ? RETURNING `+noteColumns,
		in.Completed, in.ID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Note{}, fmt.Errorf("update %s: %w", in.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.Note{}, fmt.Errorf("update todo failed: %w", err)
	}
	return n, nil
}

// DeleteTodo removes a note.
func (r *Repository) DeleteTodo(ctx context.Context, in core.DeleteInput) (core.Note, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM todos WHERE id = ? RETURNING `+noteColumns, in.ID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Note{}, fmt.Errorf("delete %s: %w", in.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.Note{}, fmt.Errorf("delete todo failed: %w", err)
	}
	return n, nil
}

// OnCreateTodo subscribes to notes created through this repository.
func (r *Repository) OnCreateTodo(ctx context.Context) (core.Subscription, error) {
	return r.broker.Subscribe(ctx), nil
}

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	DSN         string `json:"dsn"`
	Notes       int    `json:"notes"`
	Subscribers int    `json:"subscribers"`
	OpenConns   int    `json:"open_conns"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	state := RepositoryState{
		DSN:         r.dsn,
		Subscribers: r.broker.Len(),
		OpenConns:   r.db.Stats().OpenConnections,
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM todos`).Scan(&state.Notes); err != nil {
		state.Notes = -1
	}
	return state
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite"
}

var (
	_ core.Backend                 = (*Repository)(nil)
	_ core.Subscriber              = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
