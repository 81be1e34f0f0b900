package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/aretw0/lifecycle/pkg/core/worker"
)

// subscriptionWorker forwards onCreateTodo notes into the store for as long
// as the store is mounted.
type subscriptionWorker struct {
	*worker.BaseWorker
	store  *Store
	source Subscriber
	sub    Subscription
	cancel context.CancelFunc
}

func newSubscriptionWorker(store *Store, source Subscriber) *subscriptionWorker {
	return &subscriptionWorker{
		BaseWorker: worker.NewBaseWorker("on-create-todo"),
		store:      store,
		source:     source,
	}
}

func (w *subscriptionWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("subscription already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub, err := w.source.OnCreateTodo(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to onCreateTodo: %w", err)
	}
	w.sub = sub
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *subscriptionWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *subscriptionWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

func (w *subscriptionWorker) run(ctx context.Context) (err error) {
	logger := w.store.logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("subscription panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("subscription panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("subscription panic", "error", err)
			}
		}
	}()
	defer func() {
		if cerr := w.sub.Close(context.Background()); cerr != nil {
			logger.Debug("subscription close failed", "error", cerr)
		}
	}()

	notes := w.sub.Notes()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notes:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return errors.New("onCreateTodo stream closed by backend")
			}
			w.store.OnRemoteCreate(n)
		}
	}
}
