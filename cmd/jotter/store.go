package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/jotter"
	"github.com/aretw0/jotter/pkg/core"
)

// session wraps a store for one CLI invocation and collects background
// mutation failures.
type session struct {
	store *core.Store

	mu     sync.Mutex
	failed []error
	errs   chan error
}

func openSession() (*session, error) {
	s := &session{errs: make(chan error, 16)}

	opts := []jotter.Option{
		jotter.WithLogger(slog.Default()),
		jotter.WithAPIKey(cfg.APIKey),
		jotter.WithTimeout(cfg.Timeout),
		jotter.WithMutationErrorHandler(s.report),
	}
	if cfg.WSEndpoint != "" {
		opts = append(opts, jotter.WithWSEndpoint(cfg.WSEndpoint))
	}

	store, err := jotter.New(cfg.Endpoint, opts...)
	if err != nil {
		return nil, err
	}
	s.store = store
	return s, nil
}

func (s *session) report(err error) {
	s.mu.Lock()
	s.failed = append(s.failed, err)
	s.mu.Unlock()

	select {
	case s.errs <- err:
	default:
	}
}

// finish waits for in-flight mutations and returns their failures.
func (s *session) finish() error {
	s.store.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.failed...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
