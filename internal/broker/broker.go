// Package broker fans created notes out to onCreateTodo subscribers.
package broker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/jotter/pkg/core"
)

// DefaultBuffer is the per-subscriber queue length used when none is given.
const DefaultBuffer = 100

// Broker delivers every published note to every live subscription.
// Publishing never blocks: a subscriber whose queue is full misses the note.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
	logger *slog.Logger
}

// New creates a Broker. A non-positive buffer means DefaultBuffer.
func New(buffer int, logger *slog.Logger) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[*subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Publish hands n to every subscriber.
func (b *Broker) Publish(n core.Note) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- n:
		default:
			b.logger.Warn("subscriber queue full, dropping note", "id", n.ID)
		}
	}
}

// Subscribe opens a subscription that ends when ctx is done or Close is called.
func (b *Broker) Subscribe(ctx context.Context) core.Subscription {
	s := &subscription{
		broker: b,
		ch:     make(chan core.Note, b.buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close(context.Background())
		case <-s.done:
		}
	}()
	return s
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type subscription struct {
	broker *Broker
	ch     chan core.Note
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Notes() <-chan core.Note {
	return s.ch
}

func (s *subscription) Close(ctx context.Context) error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		close(s.ch)
		s.broker.mu.Unlock()
		close(s.done)
	})
	return nil
}
