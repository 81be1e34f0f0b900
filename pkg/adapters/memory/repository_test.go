package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/jotter/pkg/adapters/memory"
	"github.com/aretw0/jotter/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_CRUD(t *testing.T) {
	repo := memory.NewRepository(nil)
	ctx := context.Background()

	_, err := repo.CreateTodo(ctx, core.Note{ID: "1", Name: "A"})
	require.NoError(t, err)
	_, err = repo.CreateTodo(ctx, core.Note{ID: "2", Name: "B"})
	require.NoError(t, err)

	_, err = repo.CreateTodo(ctx, core.Note{ID: "1"})
	assert.ErrorIs(t, err, core.ErrConflict)
	_, err = repo.CreateTodo(ctx, core.Note{})
	assert.ErrorIs(t, err, core.ErrInvalidID)

	notes, err := repo.ListTodos(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "2", notes[0].ID, "newest first")

	updated, err := repo.UpdateTodo(ctx, core.UpdateInput{ID: "1", Completed: true})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "A", updated.Name)

	deleted, err := repo.DeleteTodo(ctx, core.DeleteInput{ID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "B", deleted.Name)

	_, err = repo.UpdateTodo(ctx, core.UpdateInput{ID: "2"})
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = repo.DeleteTodo(ctx, core.DeleteInput{ID: "2"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	notes, err = repo.ListTodos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{{ID: "1", Name: "A", Completed: true}}, notes)
}

func TestRepository_OnCreateTodo(t *testing.T) {
	repo := memory.NewRepository(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := repo.OnCreateTodo(ctx)
	require.NoError(t, err)

	_, err = repo.CreateTodo(ctx, core.Note{ID: "x", ClientID: "c"})
	require.NoError(t, err)

	select {
	case n := <-sub.Notes():
		assert.Equal(t, "x", n.ID)
	case <-time.After(time.Second):
		t.Fatal("no create event")
	}

	state := repo.State().(memory.RepositoryState)
	assert.Equal(t, 1, state.Notes)
	assert.Equal(t, 1, state.Subscribers)
}

// Two stores sharing one backend see each other's notes, but not their own echoes.
func TestRepository_TwoStores(t *testing.T) {
	repo := memory.NewRepository(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := core.NewStore("alice", repo)
	bob := core.NewStore("bob", repo)
	require.NoError(t, alice.Mount(ctx))
	require.NoError(t, bob.Mount(ctx))
	defer alice.Unmount(ctx)
	defer bob.Unmount(ctx)

	alice.SetField(core.FieldName, "milk")
	alice.SetField(core.FieldDescription, "2 litres")
	note, err := alice.Create(ctx)
	require.NoError(t, err)
	alice.Wait()

	assert.Eventually(t, func() bool {
		_, ok := bob.Snapshot().Find(note.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// The echo reaches alice too and must not duplicate her optimistic insert.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, alice.Snapshot().Notes, 1)
}
