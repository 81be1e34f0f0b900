package jotter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/core"
)

// --- Types ---

// Note is a public alias for the core note.
type Note = core.Note

// Store is a public alias for the client-side note store.
type Store = core.Store

// State is a public alias for a store snapshot.
type State = core.State

// Backend is a public alias for the notes backend port.
type Backend = core.Backend

// --- Configuration ---

// Option defines a functional option for configuring Jotter.
type Option = platform.Option

// WithLogger sets the logger for the store and backend.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithBackend injects a ready backend.
func WithBackend(b Backend) Option {
	return platform.WithBackend(b)
}

// WithAdapter selects the backend by name: "graphql", "memory", "fs" or "sqlite".
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithClientID fixes the session id instead of generating one.
func WithClientID(id core.ClientID) Option {
	return platform.WithClientID(id)
}

// WithMutationErrorHandler registers a callback for failed background mutations.
func WithMutationErrorHandler(fn func(error)) Option {
	return platform.WithMutationErrorHandler(fn)
}

// WithAPIKey sets the x-api-key sent to the GraphQL endpoint.
func WithAPIKey(key string) Option {
	return platform.WithAPIKey(key)
}

// WithWSEndpoint overrides the subscription endpoint.
func WithWSEndpoint(endpoint string) Option {
	return platform.WithWSEndpoint(endpoint)
}

// WithHTTPClient sets the HTTP client used for queries and mutations.
func WithHTTPClient(c *http.Client) Option {
	return platform.WithHTTPClient(c)
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return platform.WithTimeout(d)
}

// WithMustExist requires the fs notes directory to exist already.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces local backends into a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the dev sandbox of local backends.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatcherErrorHandler registers a callback for fs watcher runtime errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates a Store on the backend selected by opts.
func New(uri string, opts ...Option) (*Store, error) {
	return platform.New(uri, opts...)
}

// Open builds a backend explicitly.
func Open(uri string, opts ...Option) (Backend, error) {
	return platform.Open(uri, opts...)
}

// Close releases a backend built by Open.
func Close(ctx context.Context, b Backend) error {
	return platform.Close(ctx, b)
}

// --- Safety & Utils ---

// ResolveDataPath determines where a local backend keeps its data.
func ResolveDataPath(userPath string, forceTemp bool) string {
	return platform.ResolveDataPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindProjectRoot looks upwards for a .jotter directory or jotter.yaml.
func FindProjectRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
