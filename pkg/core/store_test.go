package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/jotter/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend implements core.Backend and core.Subscriber in memory,
// recording every mutation it receives.
type fakeBackend struct {
	mu      sync.Mutex
	list    []core.Note
	listErr error
	mutErr  error
	created []core.Note
	updated []core.UpdateInput
	deleted []core.DeleteInput
	subs    []*fakeSubscription
	subErr  error
}

func (f *fakeBackend) ListTodos(ctx context.Context) ([]core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Note(nil), f.list...), nil
}

func (f *fakeBackend) CreateTodo(ctx context.Context, n core.Note) (core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, n)
	return n, f.mutErr
}

func (f *fakeBackend) UpdateTodo(ctx context.Context, in core.UpdateInput) (core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, in)
	return core.Note{ID: in.ID, Completed: in.Completed}, f.mutErr
}

func (f *fakeBackend) DeleteTodo(ctx context.Context, in core.DeleteInput) (core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, in)
	return core.Note{ID: in.ID}, f.mutErr
}

func (f *fakeBackend) OnCreateTodo(ctx context.Context) (core.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := &fakeSubscription{ch: make(chan core.Note, 8)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

type fakeSubscription struct {
	once   sync.Once
	ch     chan core.Note
	closed bool
	mu     sync.Mutex
}

func (s *fakeSubscription) Notes() <-chan core.Note { return s.ch }

func (s *fakeSubscription) Close(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func newTestStore(backend *fakeBackend, opts ...core.StoreOption) *core.Store {
	opts = append([]core.StoreOption{core.WithIDGenerator(sequentialIDs())}, opts...)
	return core.NewStore("me", backend, opts...)
}

func TestStore_List(t *testing.T) {
	t.Run("Success installs fetched notes", func(t *testing.T) {
		fetched := []core.Note{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}
		store := newTestStore(&fakeBackend{list: fetched})

		require.True(t, store.Snapshot().Loading)
		require.NoError(t, store.List(context.Background()))

		state := store.Snapshot()
		assert.Equal(t, fetched, state.Notes)
		assert.False(t, state.Loading)
		assert.False(t, state.Error)
	})

	t.Run("Failure sets terminal error flag", func(t *testing.T) {
		boom := errors.New("network down")
		store := newTestStore(&fakeBackend{listErr: boom})

		err := store.List(context.Background())
		var fetchErr *core.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.ErrorIs(t, err, boom)

		state := store.Snapshot()
		assert.False(t, state.Loading)
		assert.True(t, state.Error)
		assert.Empty(t, state.Notes)
	})
}

func TestStore_Create_Validation(t *testing.T) {
	cases := []core.FormDraft{
		{},
		{Name: "only name"},
		{Description: "only description"},
	}
	for _, form := range cases {
		backend := &fakeBackend{list: []core.Note{{ID: "1"}}}
		store := newTestStore(backend)
		require.NoError(t, store.List(context.Background()))
		store.SetField(core.FieldName, form.Name)
		store.SetField(core.FieldDescription, form.Description)
		before := store.Snapshot()

		_, err := store.Create(context.Background())
		require.ErrorIs(t, err, core.ErrValidation)
		assert.Equal(t, core.ValidationMessage, err.Error())

		store.Wait()
		assert.Equal(t, before, store.Snapshot())
		assert.Empty(t, backend.created)
	}
}

func TestStore_Create(t *testing.T) {
	backend := &fakeBackend{list: []core.Note{{ID: "1", Name: "A"}}}
	store := newTestStore(backend)
	ctx := context.Background()
	require.NoError(t, store.List(ctx))

	store.SetField(core.FieldName, "B")
	store.SetField(core.FieldDescription, "e")
	note, err := store.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, "gen-1", note.ID)
	assert.Equal(t, "me", note.ClientID)
	assert.False(t, note.Completed)

	state := store.Snapshot()
	require.Len(t, state.Notes, 2)
	assert.Equal(t, note, state.Notes[0])
	assert.Equal(t, core.FormDraft{}, state.Form)

	store.Wait()
	require.Len(t, backend.created, 1)
	assert.Equal(t, note, backend.created[0], "client and server must agree on identity")
}

func TestStore_MutationFailureKeepsOptimisticState(t *testing.T) {
	boom := errors.New("backend rejected")
	backend := &fakeBackend{list: []core.Note{{ID: "1"}, {ID: "2"}}, mutErr: boom}

	var mu sync.Mutex
	var reported []error
	store := newTestStore(backend, core.WithMutationErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}))
	ctx := context.Background()
	require.NoError(t, store.List(ctx))

	store.SetField(core.FieldName, "n")
	store.SetField(core.FieldDescription, "d")
	_, err := store.Create(ctx)
	require.NoError(t, err)
	_, err = store.ToggleCompleted(ctx, core.Note{ID: "1"})
	require.NoError(t, err)
	require.NoError(t, store.Remove(ctx, "2"))
	store.Wait()

	state := store.Snapshot()
	assert.Equal(t, []string{"gen-1", "1"}, noteIDs(state.Notes))
	assert.True(t, state.Notes[1].Completed)
	assert.False(t, state.Error, "mutation failures never set the fetch error flag")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 3)
	for _, err := range reported {
		var mutErr *core.MutationError
		require.ErrorAs(t, err, &mutErr)
		assert.ErrorIs(t, err, boom)
	}
}

func TestStore_ToggleCompleted(t *testing.T) {
	notes := []core.Note{
		{ID: "1", Name: "A", Description: "a"},
		{ID: "2", Name: "B", Description: "b", Completed: true},
		{ID: "3", Name: "C", Description: "c"},
	}
	backend := &fakeBackend{list: notes}
	store := newTestStore(backend)
	ctx := context.Background()
	require.NoError(t, store.List(ctx))

	updated, err := store.ToggleCompleted(ctx, notes[1])
	require.NoError(t, err)
	assert.False(t, updated.Completed)

	state := store.Snapshot()
	assert.Equal(t, notes[0], state.Notes[0])
	assert.Equal(t, notes[2], state.Notes[2])
	assert.False(t, state.Notes[1].Completed)

	store.Wait()
	assert.Equal(t, []core.UpdateInput{{ID: "2", Completed: false}}, backend.updated)

	t.Run("Unknown id", func(t *testing.T) {
		before := store.Snapshot()
		_, err := store.ToggleCompleted(ctx, core.Note{ID: "missing"})
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.Equal(t, before, store.Snapshot())
	})
}

func TestStore_Remove(t *testing.T) {
	backend := &fakeBackend{list: []core.Note{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	store := newTestStore(backend)
	ctx := context.Background()
	require.NoError(t, store.List(ctx))

	require.NoError(t, store.Remove(ctx, "2"))
	assert.Equal(t, []string{"1", "3"}, noteIDs(store.Snapshot().Notes))

	err := store.Remove(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, []string{"1", "3"}, noteIDs(store.Snapshot().Notes))

	store.Wait()
	assert.Equal(t, []core.DeleteInput{{ID: "2"}}, backend.deleted, "unknown ids are never sent")
}

func TestStore_OnRemoteCreate(t *testing.T) {
	store := newTestStore(&fakeBackend{})
	require.NoError(t, store.List(context.Background()))

	store.OnRemoteCreate(core.Note{ID: "echo", ClientID: "me"})
	assert.Empty(t, store.Snapshot().Notes)

	store.OnRemoteCreate(core.Note{ID: "x", ClientID: "someone-else"})
	assert.Equal(t, []string{"x"}, noteIDs(store.Snapshot().Notes))
}

func TestStore_Scenario(t *testing.T) {
	backend := &fakeBackend{list: []core.Note{{ID: "1", Name: "A", Description: "d"}}}
	store := newTestStore(backend)
	ctx := context.Background()

	require.NoError(t, store.List(ctx))
	state := store.Snapshot()
	require.Len(t, state.Notes, 1)
	assert.False(t, state.Loading)

	store.SetField(core.FieldName, "B")
	store.SetField(core.FieldDescription, "e")
	created, err := store.Create(ctx)
	require.NoError(t, err)
	state = store.Snapshot()
	require.Len(t, state.Notes, 2)
	assert.Equal(t, "B", state.Notes[0].Name)
	assert.Equal(t, "A", state.Notes[1].Name)

	_, err = store.ToggleCompleted(ctx, core.Note{ID: "1", Name: "A", Description: "d"})
	require.NoError(t, err)
	state = store.Snapshot()
	assert.True(t, state.Notes[1].Completed)
	assert.Equal(t, created, state.Notes[0])

	require.NoError(t, store.Remove(ctx, "1"))
	state = store.Snapshot()
	require.Len(t, state.Notes, 1)
	assert.Equal(t, created, state.Notes[0])

	store.Wait()
}

func TestStore_MountForwardsRemoteNotes(t *testing.T) {
	backend := &fakeBackend{list: []core.Note{{ID: "1"}}}
	store := newTestStore(backend)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, store.Mount(ctx))
	require.Len(t, backend.subs, 1)
	sub := backend.subs[0]

	states := store.Watch(ctx)

	sub.ch <- core.Note{ID: "mine", ClientID: "me"}
	sub.ch <- core.Note{ID: "theirs", ClientID: "other"}

	waitFor(t, states, func(s core.State) bool {
		return len(s.Notes) == 2 && s.Notes[0].ID == "theirs"
	})
	_, found := store.Snapshot().Find("mine")
	assert.False(t, found, "echo must be suppressed")

	assert.Error(t, store.Mount(ctx), "second mount must fail")

	require.NoError(t, store.Unmount(ctx))
	assert.Eventually(t, sub.isClosed, 2*time.Second, 10*time.Millisecond)

	state, ok := store.State().(core.StoreState)
	require.True(t, ok)
	assert.False(t, state.Subscribed)
	assert.Equal(t, core.StatusReady, state.Status)
}

// gatedListBackend holds ListTodos until release is closed.
type gatedListBackend struct {
	*fakeBackend
	listing chan struct{}
	release chan struct{}
}

func (g *gatedListBackend) ListTodos(ctx context.Context) ([]core.Note, error) {
	close(g.listing)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeBackend.ListTodos(ctx)
}

func TestStore_MountKeepsNotesReceivedDuringFetch(t *testing.T) {
	for _, tc := range []struct {
		name    string
		listErr error
		want    []string
	}{
		{name: "Fetch succeeds", want: []string{"during-fetch", "1"}},
		{name: "Fetch fails", listErr: errors.New("boom"), want: []string{"during-fetch"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			backend := &gatedListBackend{
				fakeBackend: &fakeBackend{list: []core.Note{{ID: "1"}}, listErr: tc.listErr},
				listing:     make(chan struct{}),
				release:     make(chan struct{}),
			}
			store := core.NewStore("me", backend, core.WithIDGenerator(sequentialIDs()))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			defer func() { _ = store.Unmount(context.Background()) }()

			mounted := make(chan error, 1)
			go func() { mounted <- store.Mount(ctx) }()

			<-backend.listing
			backend.mu.Lock()
			require.Len(t, backend.subs, 1)
			sub := backend.subs[0]
			backend.mu.Unlock()

			states := store.Watch(ctx)
			sub.ch <- core.Note{ID: "during-fetch", ClientID: "other"}
			sub.ch <- core.Note{ID: "echo", ClientID: "me"}
			waitFor(t, states, func(s core.State) bool {
				_, ok := s.Find("during-fetch")
				return ok && s.Loading
			})

			close(backend.release)
			err := <-mounted
			if tc.listErr != nil {
				var fetchErr *core.FetchError
				require.ErrorAs(t, err, &fetchErr)
			} else {
				require.NoError(t, err)
			}

			state := store.Snapshot()
			assert.False(t, state.Loading)
			assert.Equal(t, tc.want, noteIDs(state.Notes))

			store.OnRemoteCreate(core.Note{ID: "during-fetch", ClientID: "other"})
			assert.Equal(t, tc.want, noteIDs(store.Snapshot().Notes), "ids stay unique")
		})
	}
}

func TestStore_SecondMountDoesNotRefetch(t *testing.T) {
	backend := &fakeBackend{list: []core.Note{{ID: "1"}}}
	store := newTestStore(backend)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, store.Mount(ctx))
	defer func() { _ = store.Unmount(context.Background()) }()

	store.SetField(core.FieldName, "B")
	store.SetField(core.FieldDescription, "e")
	created, err := store.Create(ctx)
	require.NoError(t, err)
	store.Wait()

	backend.mu.Lock()
	backend.listErr = errors.New("should not be called")
	backend.mu.Unlock()

	require.Error(t, store.Mount(ctx))
	state := store.Snapshot()
	assert.False(t, state.Error)
	assert.Equal(t, []string{created.ID, "1"}, noteIDs(state.Notes))
	assert.Len(t, backend.subs, 1)
}

func TestStore_MountSubscriptionFailure(t *testing.T) {
	subErr := errors.New("ws refused")
	backend := &fakeBackend{list: []core.Note{{ID: "1"}}, subErr: subErr}
	store := newTestStore(backend)

	err := store.Mount(context.Background())
	assert.ErrorIs(t, err, subErr)
	var se *core.SubscribeError
	assert.ErrorAs(t, err, &se)
	var fetchErr *core.FetchError
	assert.False(t, errors.As(err, &fetchErr))
	assert.Equal(t, []string{"1"}, noteIDs(store.Snapshot().Notes), "list still loads")
}

func TestStore_WatchCoalesces(t *testing.T) {
	store := newTestStore(&fakeBackend{})
	ctx, cancel := context.WithCancel(context.Background())

	states := store.Watch(ctx)
	for i := 0; i < 10; i++ {
		store.SetField(core.FieldName, fmt.Sprintf("n%d", i))
	}

	latest := <-states
	assert.Equal(t, "n9", latest.Form.Name)

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-states
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func waitFor(t *testing.T, states <-chan core.State, cond func(core.State) bool) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if cond(s) {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for state")
		}
	}
}

func noteIDs(notes []core.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}
