// Package server exposes a notes backend through the same GraphQL
// operations the client speaks, for local development and tests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aretw0/introspection"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/aretw0/jotter/pkg/adapters/graphql"
	"github.com/aretw0/jotter/pkg/core"
)

// Config holds the server settings.
type Config struct {
	Addr        string        // Listen address, e.g. localhost:8080
	APIKey      string        // Required x-api-key when set
	InitTimeout time.Duration // Wait for connection_init (10s)
	Logger      *slog.Logger
}

// Server serves POST /graphql and the WebSocket subscription endpoint.
type Server struct {
	backend  core.Backend
	config   Config
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	requests      atomic.Int64
	subscriptions atomic.Int64
}

// New creates a Server over backend.
func New(backend core.Backend, config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.InitTimeout <= 0 {
		config.InitTimeout = 10 * time.Second
	}

	s := &Server{
		backend: backend,
		config:  config,
		logger:  config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{graphql.Subprotocol},
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Methods(http.MethodPost).Path("/graphql").HandlerFunc(s.handleGraphQL)
	r.Methods(http.MethodGet).Path("/graphql").HandlerFunc(s.handleSubscriptions)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodGet).Path("/state").HandlerFunc(s.handleState)
	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.config.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return <-errCh
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled", "method", r.Method, "url", r.URL, "duration", m.Duration, "status", m.Code)
	})
}

func (s *Server) authorized(key string) bool {
	return s.config.APIKey == "" || key == s.config.APIKey
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get(graphql.APIKeyHeader)) {
		writeJSON(w, http.StatusUnauthorized, graphql.Response{
			Errors: []graphql.ErrorMessage{{Message: "unauthorized"}},
		})
		return
	}

	var req graphql.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, graphql.Response{
			Errors: []graphql.ErrorMessage{{Message: "invalid request body: " + err.Error()}},
		})
		return
	}

	data, err := s.execute(r.Context(), req)
	if err != nil {
		s.logger.Debug("operation failed", "op", req.OperationName, "error", err)
		writeJSON(w, http.StatusOK, graphql.Response{
			Errors: []graphql.ErrorMessage{{Message: err.Error()}},
		})
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, graphql.Response{
			Errors: []graphql.ErrorMessage{{Message: "failed to encode data"}},
		})
		return
	}
	writeJSON(w, http.StatusOK, graphql.Response{Data: raw})
}

// execute dispatches a query or mutation by operation name.
func (s *Server) execute(ctx context.Context, req graphql.Request) (any, error) {
	switch req.OperationName {
	case graphql.OpListTodos:
		notes, err := s.backend.ListTodos(ctx)
		if err != nil {
			return nil, err
		}
		var data graphql.ListTodosData
		data.ListTodos.Items = notes
		return data, nil

	case graphql.OpCreateTodo:
		var in core.Note
		if err := decodeInput(req.Variables, &in); err != nil {
			return nil, err
		}
		n, err := s.backend.CreateTodo(ctx, in)
		if err != nil {
			return nil, err
		}
		return graphql.CreateTodoData{CreateTodo: n}, nil

	case graphql.OpUpdateTodo:
		var in core.UpdateInput
		if err := decodeInput(req.Variables, &in); err != nil {
			return nil, err
		}
		n, err := s.backend.UpdateTodo(ctx, in)
		if err != nil {
			return nil, err
		}
		return graphql.UpdateTodoData{UpdateTodo: n}, nil

	case graphql.OpDeleteTodo:
		var in core.DeleteInput
		if err := decodeInput(req.Variables, &in); err != nil {
			return nil, err
		}
		n, err := s.backend.DeleteTodo(ctx, in)
		if err != nil {
			return nil, err
		}
		return graphql.DeleteTodoData{DeleteTodo: n}, nil

	case "":
		return nil, errors.New("operationName is required")
	default:
		return nil, fmt.Errorf("unknown operation %q", req.OperationName)
	}
}

// decodeInput converts variables.input into dst.
func decodeInput(vars map[string]any, dst any) error {
	input, ok := vars["input"]
	if !ok {
		return errors.New("variable input is required")
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// ServerState exposes internal state for observability.
type ServerState struct {
	Addr          string `json:"addr"`
	Requests      int64  `json:"requests"`
	Subscriptions int64  `json:"active_subscriptions"`
	Backend       any    `json:"backend,omitempty"`
	BackendType   string `json:"backend_type"`
}

// State implements introspection.Introspectable.
func (s *Server) State() any {
	state := ServerState{
		Addr:          s.config.Addr,
		Requests:      s.requests.Load(),
		Subscriptions: s.subscriptions.Load(),
		BackendType:   "unknown",
	}
	if comp, ok := s.backend.(introspection.Component); ok {
		state.BackendType = comp.ComponentType()
	}
	if intro, ok := s.backend.(introspection.Introspectable); ok {
		state.Backend = intro.State()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Server) ComponentType() string {
	return "server"
}

var _ introspection.Introspectable = (*Server)(nil)
var _ introspection.Component = (*Server)(nil)
