package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aretw0/jotter/pkg/core"
)

// OnCreateTodo implements core.Subscriber. It dials the WebSocket endpoint,
// completes the graphql-transport-ws handshake and subscribes. The stream
// ends when ctx is done, Close is called or the server goes away.
func (c *Client) OnCreateTodo(ctx context.Context) (core.Subscription, error) {
	header := http.Header{}
	if c.config.APIKey != "" {
		header.Set(APIKeyHeader, c.config.APIKey)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.AckTimeout,
		Subprotocols:     []string{Subprotocol},
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.WSEndpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.config.WSEndpoint, err)
	}

	s := &subscription{
		conn:   conn,
		id:     uuid.NewString(),
		notes:  make(chan core.Note),
		done:   make(chan struct{}),
		logger: c.logger,
	}
	if err := s.handshake(c.config.APIKey, c.config.AckTimeout); err != nil {
		_ = conn.Close()
		return nil, err
	}

	lifecycle.Go(context.WithoutCancel(ctx), s.read, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("subscription reader failed", "error", err)
	}))

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close(context.Background())
		case <-s.done:
		}
	}()
	return s, nil
}

type subscription struct {
	conn    *websocket.Conn
	id      string
	notes   chan core.Note
	done    chan struct{}
	once    sync.Once
	writeMu sync.Mutex
	logger  *slog.Logger
}

func (s *subscription) Notes() <-chan core.Note {
	return s.notes
}

// Close sends complete and tears the connection down.
func (s *subscription) Close(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		_ = s.write(Message{ID: s.id, Type: MsgComplete})
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *subscription) write(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *subscription) handshake(apiKey string, timeout time.Duration) error {
	var payload json.RawMessage
	if apiKey != "" {
		raw, err := json.Marshal(map[string]string{APIKeyHeader: apiKey})
		if err != nil {
			return err
		}
		payload = raw
	}
	if err := s.write(Message{Type: MsgConnectionInit, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send connection_init: %w", err)
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("waiting for connection_ack: %w", err)
		}
		if msg.Type == MsgPing {
			if err := s.write(Message{Type: MsgPong}); err != nil {
				return err
			}
			continue
		}
		if msg.Type != MsgConnectionAck {
			return fmt.Errorf("expected connection_ack, got %q", msg.Type)
		}
		break
	}
	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}

	subscribe, err := json.Marshal(Request{
		Query:         OnCreateTodoSubscription,
		OperationName: OpOnCreateTodo,
	})
	if err != nil {
		return err
	}
	if err := s.write(Message{ID: s.id, Type: MsgSubscribe, Payload: subscribe}); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// read pumps server frames until the connection ends, then closes notes.
func (s *subscription) read(ctx context.Context) error {
	defer close(s.notes)

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if s.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			s.logger.Warn("subscription connection lost", "error", err)
			return nil
		}

		switch msg.Type {
		case MsgPing:
			if err := s.write(Message{Type: MsgPong}); err != nil {
				return fmt.Errorf("failed to pong: %w", err)
			}
		case MsgNext:
			if msg.ID != s.id {
				continue
			}
			n, err := decodeNext(msg.Payload)
			if err != nil {
				s.logger.Warn("dropping malformed onCreateTodo event", "error", err)
				continue
			}
			select {
			case s.notes <- n:
			case <-s.done:
				return nil
			}
		case MsgError:
			s.logger.Error("subscription rejected", "payload", string(msg.Payload))
			return nil
		case MsgComplete:
			if msg.ID == s.id {
				return nil
			}
		}
	}
}

func (s *subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func decodeNext(payload json.RawMessage) (core.Note, error) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return core.Note{}, err
	}
	if len(resp.Errors) > 0 {
		return core.Note{}, &ResponseError{Messages: []string{resp.Errors[0].Message}}
	}
	var data OnCreateTodoData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return core.Note{}, err
	}
	if data.OnCreateTodo.ID == "" {
		return core.Note{}, errors.New("event has no note id")
	}
	return data.OnCreateTodo, nil
}
