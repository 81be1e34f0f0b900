package core

import "context"

// Backend is the remote data source behind a Store: one query and three
// mutations. Implementations must be safe for concurrent use.
type Backend interface {
	// ListTodos returns every note, newest first.
	ListTodos(ctx context.Context) ([]Note, error)

	// CreateTodo persists a note under the id chosen by the caller.
	CreateTodo(ctx context.Context, n Note) (Note, error)

	// UpdateTodo sets the completion flag of an existing note.
	UpdateTodo(ctx context.Context, in UpdateInput) (Note, error)

	// DeleteTodo removes a note and returns its last state.
	DeleteTodo(ctx context.Context, in DeleteInput) (Note, error)
}

// Subscriber is implemented by backends that push created notes.
type Subscriber interface {
	// OnCreateTodo opens a stream of every note created from now on,
	// including the caller's own.
	OnCreateTodo(ctx context.Context) (Subscription, error)
}

// Subscription is a live onCreateTodo stream.
type Subscription interface {
	// Notes is closed once the subscription ends.
	Notes() <-chan Note

	// Close releases the stream. It is safe to call more than once.
	Close(ctx context.Context) error
}
