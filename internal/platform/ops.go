package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/adapters/graphql"
	"github.com/aretw0/jotter/pkg/adapters/memory"
	"github.com/aretw0/jotter/pkg/adapters/sqlite"
	"github.com/aretw0/jotter/pkg/core"
)

// Open builds the backend selected by the options.
// The 'uri' argument is adapter-specific: the GraphQL endpoint for "graphql",
// a directory for "fs", a DSN for "sqlite"; "memory" ignores it.
//
// Release the result with Close.
func Open(uri string, opts ...Option) (core.Backend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return open(uri, o)
}

func open(uri string, o *options) (core.Backend, error) {
	// 1. Check for injected backend
	if o.backend != nil {
		return o.backend, nil
	}

	// 2. Build based on Adapter
	switch o.adapter {
	case "graphql":
		return openGraphQL(uri, o)
	case "memory":
		return memory.NewRepository(o.logger), nil
	case "fs":
		return openFS(uri, o)
	case "sqlite":
		return openSQLite(uri, o)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

func openGraphQL(endpoint string, o *options) (core.Backend, error) {
	apiKey, _ := o.config["api_key"].(string)
	wsEndpoint, _ := o.config["ws_endpoint"].(string)
	httpClient, _ := o.config["http_client"].(*http.Client)
	timeout, _ := o.config["timeout"].(time.Duration)

	return graphql.NewClient(graphql.Config{
		Endpoint:   endpoint,
		WSEndpoint: wsEndpoint,
		APIKey:     apiKey,
		HTTPClient: httpClient,
		Timeout:    timeout,
		Logger:     o.logger,
	})
}

// localPath applies the dev sandbox to a local backend location.
func localPath(path string, o *options) string {
	tempDir, _ := o.config["temp_dir"].(bool)
	// Default to true (safe) if not present.
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}

	useTemp := tempDir || (IsDevRun() && devSafety)
	resolved := ResolveDataPath(path, useTemp)

	if o.logger != nil && useTemp && resolved != path {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolved)
	}
	return resolved
}

// openFS handles the initialization logic for the filesystem adapter.
func openFS(path string, o *options) (core.Backend, error) {
	mustExist, _ := o.config["must_exist"].(bool)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	repo := fs.NewRepository(fs.Config{
		Path:         localPath(path, o),
		MustExist:    mustExist,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	})
	if err := repo.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

func openSQLite(dsn string, o *options) (core.Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite adapter requires a DSN")
	}
	if dsn != ":memory:" {
		dsn = localPath(dsn, o)
	}
	return sqlite.Open(context.Background(), dsn, o.logger)
}

// Close releases whatever the backend holds open (watchers, database handles).
func Close(ctx context.Context, b core.Backend) error {
	switch c := b.(type) {
	case interface{ Close(context.Context) error }:
		return c.Close(ctx)
	case io.Closer:
		return c.Close()
	default:
		return nil
	}
}
