package platform

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/jotter/pkg/core"
)

// options holds the internal configuration for a Jotter store and its backend.
type options struct {
	backend         core.Backend
	logger          *slog.Logger
	adapter         string
	clientID        core.ClientID
	onMutationError func(error)
	config          map[string]interface{}
}

// Option defines a functional option for configuring Jotter.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		backend: nil,
		logger:  nil,
		adapter: "graphql",
		config:  make(map[string]interface{}),
	}
}

// WithLogger sets the logger for the store and backend.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBackend injects a ready backend (e.g. a fake in tests).
// If provided, the adapter named by WithAdapter is not built.
func WithBackend(b core.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithAdapter selects the backend by name: "graphql" (default), "memory", "fs" or "sqlite".
// The uri passed to New/Open is the endpoint, directory or DSN respectively.
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithClientID fixes the session id instead of generating one.
func WithClientID(id core.ClientID) Option {
	return func(o *options) {
		o.clientID = id
	}
}

// WithMutationErrorHandler registers a callback for failed background mutations.
func WithMutationErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onMutationError = fn
	}
}

// WithAPIKey sets the x-api-key sent to the GraphQL endpoint.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.config["api_key"] = key
	}
}

// WithWSEndpoint overrides the subscription endpoint derived from the HTTP one.
func WithWSEndpoint(endpoint string) Option {
	return func(o *options) {
		o.config["ws_endpoint"] = endpoint
	}
}

// WithHTTPClient sets the HTTP client used for queries and mutations.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.config["http_client"] = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["timeout"] = d
	}
}

// WithMustExist requires the fs notes directory to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithForceTemp forces local backends into a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithDevSafety controls the sandbox used by local backends under `go run`.
// By default (true) the fs and sqlite backends are re-rooted into a temporary
// directory when running from a dev build.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithWatcherErrorHandler registers a callback for fs watcher runtime errors
// (e.g. permission denied), which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}
