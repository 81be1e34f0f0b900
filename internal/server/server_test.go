package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/internal/server"
	"github.com/aretw0/jotter/pkg/adapters/graphql"
	"github.com/aretw0/jotter/pkg/adapters/memory"
	"github.com/aretw0/jotter/pkg/core"
)

func setupServer(t *testing.T, apiKey string) (*httptest.Server, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository(nil)
	srv := server.New(repo, server.Config{APIKey: apiKey, InitTimeout: 2 * time.Second})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, repo
}

func newClient(t *testing.T, ts *httptest.Server, apiKey string) *graphql.Client {
	t.Helper()
	client, err := graphql.NewClient(graphql.Config{
		Endpoint: ts.URL + "/graphql",
		APIKey:   apiKey,
	})
	require.NoError(t, err)
	return client
}

func TestServer_Operations(t *testing.T) {
	ts, _ := setupServer(t, "")
	client := newClient(t, ts, "")
	ctx := context.Background()

	notes, err := client.ListTodos(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)

	created, err := client.CreateTodo(ctx, core.Note{ID: "1", Name: "A", Description: "d", ClientID: "c"})
	require.NoError(t, err)
	assert.Equal(t, "A", created.Name)

	updated, err := client.UpdateTodo(ctx, core.UpdateInput{ID: "1", Completed: true})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	notes, err = client.ListTodos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{{ID: "1", Name: "A", Description: "d", Completed: true, ClientID: "c"}}, notes)

	deleted, err := client.DeleteTodo(ctx, core.DeleteInput{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", deleted.ID)

	_, err = client.DeleteTodo(ctx, core.DeleteInput{ID: "1"})
	var respErr *graphql.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Contains(t, respErr.Error(), "not found")
}

func TestServer_RejectsUnknownOperation(t *testing.T) {
	ts, _ := setupServer(t, "")
	client := newClient(t, ts, "")

	err := client.Do(context.Background(), graphql.Request{Query: "{ nope }", OperationName: "Nope"}, nil)
	var respErr *graphql.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Contains(t, respErr.Messages[0], "unknown operation")

	resp, err := http.Post(ts.URL+"/graphql", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_APIKey(t *testing.T) {
	ts, _ := setupServer(t, "secret")
	ctx := context.Background()

	_, err := newClient(t, ts, "wrong").ListTodos(ctx)
	var statusErr *graphql.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)

	_, err = newClient(t, ts, "secret").ListTodos(ctx)
	require.NoError(t, err)

	_, err = newClient(t, ts, "wrong").OnCreateTodo(ctx)
	assert.Error(t, err, "handshake must be refused")
}

func TestServer_Subscription(t *testing.T) {
	ts, repo := setupServer(t, "secret")
	client := newClient(t, ts, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.OnCreateTodo(ctx)
	require.NoError(t, err)
	defer sub.Close(ctx)

	// The subscribe frame is processed asynchronously by the server.
	require.Eventually(t, func() bool {
		return repo.State().(memory.RepositoryState).Subscribers == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = repo.CreateTodo(ctx, core.Note{ID: "pushed", Name: "n", ClientID: "other"})
	require.NoError(t, err)

	select {
	case n := <-sub.Notes():
		assert.Equal(t, "pushed", n.ID)
		assert.Equal(t, "other", n.ClientID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for onCreateTodo")
	}

	require.NoError(t, sub.Close(ctx))
	assert.Eventually(t, func() bool {
		return repo.State().(memory.RepositoryState).Subscribers == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RawProtocol(t *testing.T) {
	ts, _ := setupServer(t, "")
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/graphql"

	dialer := websocket.Dialer{Subprotocols: []string{graphql.Subprotocol}}
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, graphql.Subprotocol, resp.Header.Get("Sec-WebSocket-Protocol"))

	require.NoError(t, conn.WriteJSON(graphql.Message{Type: graphql.MsgConnectionInit}))
	var ack graphql.Message
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, graphql.MsgConnectionAck, ack.Type)

	require.NoError(t, conn.WriteJSON(graphql.Message{Type: graphql.MsgPing}))
	var pong graphql.Message
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, graphql.MsgPong, pong.Type)

	payload, _ := json.Marshal(graphql.Request{Query: "subscription X { x }", OperationName: "X"})
	require.NoError(t, conn.WriteJSON(graphql.Message{ID: "1", Type: graphql.MsgSubscribe, Payload: payload}))
	var errMsg graphql.Message
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Equal(t, graphql.MsgError, errMsg.Type)
	assert.Equal(t, "1", errMsg.ID)
}

func TestServer_EndToEndStores(t *testing.T) {
	ts, repo := setupServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := core.NewStore("alice", newClient(t, ts, ""))
	bob := core.NewStore("bob", newClient(t, ts, ""))
	require.NoError(t, alice.Mount(ctx))
	require.NoError(t, bob.Mount(ctx))
	defer alice.Unmount(ctx)
	defer bob.Unmount(ctx)
	require.Eventually(t, func() bool {
		return repo.State().(memory.RepositoryState).Subscribers == 2
	}, 2*time.Second, 10*time.Millisecond)

	alice.SetField(core.FieldName, "B")
	alice.SetField(core.FieldDescription, "e")
	note, err := alice.Create(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := bob.Snapshot().Find(note.ID)
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	_, err = bob.ToggleCompleted(ctx, note)
	require.NoError(t, err)
	bob.Wait()

	fresh := core.NewStore("carol", newClient(t, ts, ""))
	require.NoError(t, fresh.List(ctx))
	got, ok := fresh.Snapshot().Find(note.ID)
	require.True(t, ok)
	assert.True(t, got.Completed)
	assert.Len(t, alice.Snapshot().Notes, 1, "own echo must not duplicate")
}

func TestServer_Health(t *testing.T) {
	ts, _ := setupServer(t, "")

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"backend_type":"memory"`)
}
