package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
)

var errAlreadyMounted = errors.New("store is already mounted")

// ValidationMessage is shown when a note is submitted with an empty field.
const ValidationMessage = "please enter a name and description"

// Store is the client-side note state machine. Local changes are applied
// optimistically and confirmed with the backend afterwards, without waiting
// and without rollback on failure.
type Store struct {
	mu       sync.RWMutex
	session  ClientID
	backend  Backend
	state    State
	logger   *slog.Logger
	onError  func(error)
	newID    func() string
	watchers map[int]chan State
	nextWID  int
	sub      *subscriptionWorker

	// Remote notes received while the initial fetch is in flight. They are
	// replayed once the fetch settles so FetchSucceeded does not drop them.
	pending []Note

	inflight      sync.WaitGroup
	inflightCount atomic.Int64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for dispatch tracing and mutation failures.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMutationErrorHandler registers a callback for failed mutations.
// Failures are logged either way.
func WithMutationErrorHandler(fn func(error)) StoreOption {
	return func(s *Store) {
		s.onError = fn
	}
}

// WithIDGenerator overrides the note id source (UUID v4 by default).
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore creates a Store for the given session on top of backend.
func NewStore(session ClientID, backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		session:  session,
		backend:  backend,
		state:    InitialState(),
		logger:   slog.Default(),
		newID:    uuid.NewString,
		watchers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClientID returns a fresh session identifier.
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

// Session returns the client id this store stamps on its notes.
func (s *Store) Session() ClientID {
	return s.session
}

// Backend returns the backend the store talks to.
func (s *Store) Backend() Backend {
	return s.backend
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Dispatch applies e to the state and notifies watchers.
func (s *Store) Dispatch(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(e)
}

func (s *Store) applyLocked(e Event) {
	s.state = Reduce(s.session, s.state, e)
	s.logger.Debug("dispatch", "event", e.String(), "notes", len(s.state.Notes))

	snap := s.state.Clone()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			// Latest wins: drop the unread snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Watch streams state snapshots, starting with the current one.
// A slow reader only sees the most recent state. The channel is closed
// when ctx is done.
func (s *Store) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextWID
	s.nextWID++
	s.watchers[id] = ch
	ch <- s.state.Clone()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// List loads the notes from the backend. It settles the loading flag
// either way; a failure is terminal for the session and is not retried.
func (s *Store) List(ctx context.Context) error {
	notes, err := s.backend.ListTodos(ctx)
	if err != nil {
		s.logger.Error("failed to fetch notes", "error", err)
		s.settle(FetchFailed{Err: err})
		return &FetchError{Err: err}
	}
	s.settle(FetchSucceeded{Notes: notes})
	return nil
}

// settle applies the fetch outcome, then replays the remote notes that
// arrived while it was loading.
func (s *Store) settle(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(e)
	pending := s.pending
	s.pending = nil
	for _, n := range pending {
		s.applyLocked(RemoteNoteReceived{Note: n})
	}
}

// SetField updates one form field.
func (s *Store) SetField(field Field, value string) {
	s.Dispatch(FieldChanged{Field: field, Value: value})
}

// Create turns the form into a note, inserts it locally and sends the
// createTodo mutation with the same id.
func (s *Store) Create(ctx context.Context) (Note, error) {
	s.mu.Lock()
	form := s.state.Form
	if !form.Valid() {
		s.mu.Unlock()
		return Note{}, &ValidationError{Message: ValidationMessage}
	}
	note := Note{
		ID:          s.newID(),
		Name:        form.Name,
		Description: form.Description,
		Completed:   false,
		ClientID:    string(s.session),
	}
	s.applyLocked(LocalNoteCreated{Note: note})
	s.mu.Unlock()

	s.mutate(ctx, "createTodo", note.ID, func(ctx context.Context) error {
		_, err := s.backend.CreateTodo(ctx, note)
		return err
	})
	return note, nil
}

// Remove drops the note locally and sends the deleteTodo mutation.
// An unknown id leaves the state untouched and returns ErrNotFound.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	notes, ok := without(s.state.Notes, id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	s.applyLocked(NoteListReplaced{Notes: notes})
	s.mu.Unlock()

	s.mutate(ctx, "deleteTodo", id, func(ctx context.Context) error {
		_, err := s.backend.DeleteTodo(ctx, DeleteInput{ID: id})
		return err
	})
	return nil
}

// ToggleCompleted flips the completion flag of the listed note with the
// same id as n and sends the updateTodo mutation with the new value.
func (s *Store) ToggleCompleted(ctx context.Context, n Note) (Note, error) {
	s.mu.Lock()
	notes, updated, ok := toggled(s.state.Notes, n.ID)
	if !ok {
		s.mu.Unlock()
		return Note{}, fmt.Errorf("toggle %s: %w", n.ID, ErrNotFound)
	}
	s.applyLocked(NoteListReplaced{Notes: notes})
	s.mu.Unlock()

	in := UpdateInput{ID: updated.ID, Completed: updated.Completed}
	s.mutate(ctx, "updateTodo", updated.ID, func(ctx context.Context) error {
		_, err := s.backend.UpdateTodo(ctx, in)
		return err
	})
	return updated, nil
}

// OnRemoteCreate handles a note pushed by the onCreateTodo subscription.
// Echoes of this session's own notes are ignored.
func (s *Store) OnRemoteCreate(n Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading {
		s.pending = append(s.pending, n)
	}
	s.applyLocked(RemoteNoteReceived{Note: n})
}

// mutate runs call in the background. The caller's cancellation does not
// abort it; Wait and Unmount observe it.
func (s *Store) mutate(ctx context.Context, op, id string, call func(context.Context) error) {
	s.inflight.Add(1)
	s.inflightCount.Add(1)
	done := func() {
		s.inflightCount.Add(-1)
		s.inflight.Done()
	}

	lifecycle.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		defer done()
		if err := call(ctx); err != nil {
			s.reportMutation(&MutationError{Op: op, ID: id, Err: err})
			return nil
		}
		s.logger.Debug("mutation confirmed", "op", op, "id", id)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.reportMutation(&MutationError{Op: op, ID: id, Err: err})
	}))
}

func (s *Store) reportMutation(err *MutationError) {
	s.logger.Error("mutation failed", "op", err.Op, "id", err.ID, "error", err.Err)
	if s.onError != nil {
		s.onError(err)
	}
}

// Wait blocks until every mutation issued so far has completed.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// Mount opens the onCreateTodo subscription (when the backend offers one)
// and loads the initial list. The subscription is opened first; notes it
// delivers during the fetch are kept once the list arrives. A failed
// subscription is returned as a *SubscribeError alongside any fetch error.
// Mounting twice fails without refetching.
func (s *Store) Mount(ctx context.Context) error {
	var subErr error
	if src, ok := s.backend.(Subscriber); ok {
		if err := s.subscribe(ctx, src); err != nil {
			if errors.Is(err, errAlreadyMounted) {
				return err
			}
			s.logger.Error("failed to subscribe", "error", err)
			subErr = &SubscribeError{Err: err}
		}
	}
	return errors.Join(subErr, s.List(ctx))
}

func (s *Store) subscribe(ctx context.Context, src Subscriber) error {
	s.mu.RLock()
	mounted := s.sub != nil
	s.mu.RUnlock()
	if mounted {
		return errAlreadyMounted
	}

	w := newSubscriptionWorker(s, src)
	if err := w.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		_ = w.Stop(ctx)
		return errAlreadyMounted
	}
	s.sub = w
	s.mu.Unlock()
	return nil
}

// Unmount releases the subscription and waits for in-flight mutations,
// up to ctx's deadline.
func (s *Store) Unmount(ctx context.Context) error {
	s.mu.Lock()
	w := s.sub
	s.sub = nil
	s.mu.Unlock()

	var stopErr error
	if w != nil {
		stopErr = w.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return stopErr
	case <-ctx.Done():
		return errors.Join(stopErr, ctx.Err())
	}
}
