package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aretw0/jotter/pkg/adapters/graphql"
	"github.com/aretw0/jotter/pkg/core"
)

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "error", err)
		return
	}
	defer conn.Close()

	sess := &wsSession{
		server: s,
		conn:   conn,
		subs:   make(map[string]core.Subscription),
	}
	sess.serve(r.Context(), r.Header.Get(graphql.APIKeyHeader))
}

// wsSession is one graphql-transport-ws connection.
type wsSession struct {
	server  *Server
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]core.Subscription
	wg   sync.WaitGroup
}

func (ws *wsSession) write(msg graphql.Message) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	return ws.conn.WriteJSON(msg)
}

func (ws *wsSession) closeWith(code int, text string) {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	_ = ws.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (ws *wsSession) serve(ctx context.Context, headerKey string) {
	logger := ws.server.logger
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		ws.closeAll()
		ws.wg.Wait()
	}()

	if !ws.init(headerKey) {
		return
	}

	// Unblock ReadJSON when the server shuts down.
	go func() {
		<-ctx.Done()
		_ = ws.conn.SetReadDeadline(time.Now())
	}()

	for {
		var msg graphql.Message
		if err := ws.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				logger.Debug("subscription connection ended", "error", err)
			}
			return
		}

		switch msg.Type {
		case graphql.MsgPing:
			if err := ws.write(graphql.Message{Type: graphql.MsgPong}); err != nil {
				return
			}
		case graphql.MsgPong:
		case graphql.MsgSubscribe:
			ws.subscribe(ctx, msg)
		case graphql.MsgComplete:
			ws.complete(msg.ID)
		case graphql.MsgConnectionInit:
			ws.closeWith(4429, "Too many initialisation requests")
			return
		default:
			ws.closeWith(4400, "Unexpected message type "+string(msg.Type))
			return
		}
	}
}

// init waits for connection_init and acknowledges it.
func (ws *wsSession) init(headerKey string) bool {
	_ = ws.conn.SetReadDeadline(time.Now().Add(ws.server.config.InitTimeout))
	var msg graphql.Message
	if err := ws.conn.ReadJSON(&msg); err != nil {
		ws.closeWith(4408, "Connection initialisation timeout")
		return false
	}
	_ = ws.conn.SetReadDeadline(time.Time{})

	if msg.Type != graphql.MsgConnectionInit {
		ws.closeWith(4400, "Expected connection_init")
		return false
	}

	key := headerKey
	if key == "" && len(msg.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			key, _ = payload[graphql.APIKeyHeader].(string)
		}
	}
	if !ws.server.authorized(key) {
		ws.closeWith(graphql.CloseForbidden, "Forbidden")
		return false
	}

	return ws.write(graphql.Message{Type: graphql.MsgConnectionAck}) == nil
}

func (ws *wsSession) subscribe(ctx context.Context, msg graphql.Message) {
	fail := func(text string) {
		payload, _ := json.Marshal([]graphql.ErrorMessage{{Message: text}})
		_ = ws.write(graphql.Message{ID: msg.ID, Type: graphql.MsgError, Payload: payload})
	}

	if msg.ID == "" {
		fail("subscription id is required")
		return
	}
	var req graphql.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		fail("invalid subscribe payload")
		return
	}
	if req.OperationName != graphql.OpOnCreateTodo {
		fail("unknown subscription " + req.OperationName)
		return
	}
	source, ok := ws.server.backend.(core.Subscriber)
	if !ok {
		fail("backend does not support subscriptions")
		return
	}

	ws.mu.Lock()
	if _, exists := ws.subs[msg.ID]; exists {
		ws.mu.Unlock()
		ws.closeWith(4409, "Subscriber for "+msg.ID+" already exists")
		return
	}
	sub, err := source.OnCreateTodo(ctx)
	if err != nil {
		ws.mu.Unlock()
		fail(err.Error())
		return
	}
	ws.subs[msg.ID] = sub
	ws.mu.Unlock()

	ws.server.subscriptions.Add(1)
	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		defer ws.server.subscriptions.Add(-1)
		ws.forward(msg.ID, sub)
	}()
}

func (ws *wsSession) forward(id string, sub core.Subscription) {
	for n := range sub.Notes() {
		data, err := json.Marshal(graphql.OnCreateTodoData{OnCreateTodo: n})
		if err != nil {
			continue
		}
		payload, err := json.Marshal(graphql.Response{Data: data})
		if err != nil {
			continue
		}
		if err := ws.write(graphql.Message{ID: id, Type: graphql.MsgNext, Payload: payload}); err != nil {
			ws.server.logger.Debug("failed to push note", "id", n.ID, "error", err)
			_ = sub.Close(context.Background())
		}
	}
}

func (ws *wsSession) complete(id string) {
	ws.mu.Lock()
	sub, ok := ws.subs[id]
	delete(ws.subs, id)
	ws.mu.Unlock()
	if ok {
		_ = sub.Close(context.Background())
	}
}

func (ws *wsSession) closeAll() {
	ws.mu.Lock()
	subs := ws.subs
	ws.subs = make(map[string]core.Subscription)
	ws.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Close(context.Background())
	}
}
