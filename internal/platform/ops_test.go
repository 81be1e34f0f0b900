package platform_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/adapters/graphql"
	"github.com/aretw0/jotter/pkg/adapters/memory"
	"github.com/aretw0/jotter/pkg/adapters/sqlite"
	"github.com/aretw0/jotter/pkg/core"
)

func TestOpen(t *testing.T) {
	t.Run("GraphQL Is Default", func(t *testing.T) {
		b, err := platform.Open("http://localhost:8080/graphql", platform.WithAPIKey("k"))
		require.NoError(t, err)
		assert.IsType(t, &graphql.Client{}, b)
	})

	t.Run("GraphQL Requires Endpoint", func(t *testing.T) {
		_, err := platform.Open("")
		assert.Error(t, err)
	})

	t.Run("Memory", func(t *testing.T) {
		b, err := platform.Open("", platform.WithAdapter("memory"))
		require.NoError(t, err)
		assert.IsType(t, &memory.Repository{}, b)
	})

	t.Run("FS Creates Directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "notes")
		b, err := platform.Open(dir, platform.WithAdapter("fs"))
		require.NoError(t, err)
		defer platform.Close(context.Background(), b)

		repo, ok := b.(*fs.Repository)
		require.True(t, ok)
		assert.Equal(t, dir, repo.Path)
		assert.DirExists(t, dir)
	})

	t.Run("FS MustExist Fails if Missing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "missing")
		_, err := platform.Open(dir, platform.WithAdapter("fs"), platform.WithMustExist(true))
		assert.Error(t, err)
	})

	t.Run("SQLite", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "notes.sqlite3")
		b, err := platform.Open(dsn, platform.WithAdapter("sqlite"))
		require.NoError(t, err)
		assert.IsType(t, &sqlite.Repository{}, b)
		assert.NoError(t, platform.Close(context.Background(), b))
	})

	t.Run("Injected Backend Wins", func(t *testing.T) {
		injected := memory.NewRepository(nil)
		b, err := platform.Open("ignored", platform.WithAdapter("fs"), platform.WithBackend(injected))
		require.NoError(t, err)
		assert.Same(t, injected, b)
	})

	t.Run("Unknown Adapter", func(t *testing.T) {
		_, err := platform.Open("x", platform.WithAdapter("s3"))
		assert.ErrorContains(t, err, "unknown adapter")
	})
}

func TestNew(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failures := make(chan error, 1)
	store, err := platform.New("",
		platform.WithAdapter("memory"),
		platform.WithClientID("session-1"),
		platform.WithMutationErrorHandler(func(err error) { failures <- err }),
	)
	require.NoError(t, err)
	assert.Equal(t, core.ClientID("session-1"), store.Session())

	require.NoError(t, store.Mount(ctx))
	defer store.Unmount(ctx)

	store.SetField(core.FieldName, "n")
	store.SetField(core.FieldDescription, "d")
	created, err := store.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-1", created.ClientID)

	// Toggling a note the backend no longer has is a background failure.
	store.Wait()
	_, err = store.Backend().DeleteTodo(ctx, core.DeleteInput{ID: created.ID})
	require.NoError(t, err)
	_, err = store.ToggleCompleted(ctx, created)
	require.NoError(t, err)

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, core.ErrNotFound)
	case <-time.After(2 * time.Second):
		t.Fatal("expected mutation failure to reach the handler")
	}
}
