// Package graphql talks to a GraphQL notes backend: queries and mutations
// over HTTP, the onCreateTodo subscription over WebSocket.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/jotter/pkg/core"
)

// Config holds the connection settings of a Client.
type Config struct {
	Endpoint   string        // HTTP endpoint, e.g. https://example.com/graphql
	WSEndpoint string        // WebSocket endpoint; derived from Endpoint when empty
	APIKey     string        // Sent as x-api-key when set
	HTTPClient *http.Client  // Defaults to a client with Timeout
	Timeout    time.Duration // Per-request timeout of the default HTTP client (30s)
	AckTimeout time.Duration // Wait for connection_ack (10s)
	Logger     *slog.Logger
}

// Client implements core.Backend and core.Subscriber against a GraphQL endpoint.
type Client struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient validates config and builds a Client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("graphql endpoint is required")
	}
	if _, err := url.Parse(config.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid graphql endpoint: %w", err)
	}
	if config.WSEndpoint == "" {
		ws, err := deriveWSEndpoint(config.Endpoint)
		if err != nil {
			return nil, err
		}
		config.WSEndpoint = ws
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.AckTimeout <= 0 {
		config.AckTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config: config,
		http:   httpClient,
		logger: config.Logger,
	}, nil
}

// deriveWSEndpoint maps http(s) to ws(s) on the same host and path.
func deriveWSEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid graphql endpoint: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Do sends req and decodes the response data into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set(APIKeyHeader, c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", req.OperationName, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("graphql request", "op", req.OperationName, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var gqlResp Response
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.OperationName, err)
	}
	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			msgs = append(msgs, e.Message)
		}
		return &ResponseError{Messages: msgs}
	}
	if out == nil {
		return nil
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return fmt.Errorf("%s: response has no data", req.OperationName)
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", req.OperationName, err)
	}
	return nil
}

// ListTodos implements core.Backend.
func (c *Client) ListTodos(ctx context.Context) ([]core.Note, error) {
	var data ListTodosData
	if err := c.Do(ctx, Request{Query: ListTodosQuery, OperationName: OpListTodos}, &data); err != nil {
		return nil, err
	}
	if data.ListTodos.Items == nil {
		return []core.Note{}, nil
	}
	return data.ListTodos.Items, nil
}

// CreateTodo implements core.Backend.
func (c *Client) CreateTodo(ctx context.Context, n core.Note) (core.Note, error) {
	var data CreateTodoData
	req := Request{
		Query:         CreateTodoMutation,
		OperationName: OpCreateTodo,
		Variables:     map[string]any{"input": n},
	}
	if err := c.Do(ctx, req, &data); err != nil {
		return core.Note{}, err
	}
	return data.CreateTodo, nil
}

// UpdateTodo implements core.Backend.
func (c *Client) UpdateTodo(ctx context.Context, in core.UpdateInput) (core.Note, error) {
	var data UpdateTodoData
	req := Request{
		Query:         UpdateTodoMutation,
		OperationName: OpUpdateTodo,
		Variables:     map[string]any{"input": in},
	}
	if err := c.Do(ctx, req, &data); err != nil {
		return core.Note{}, err
	}
	return data.UpdateTodo, nil
}

// DeleteTodo implements core.Backend.
func (c *Client) DeleteTodo(ctx context.Context, in core.DeleteInput) (core.Note, error) {
	var data DeleteTodoData
	req := Request{
		Query:         DeleteTodoMutation,
		OperationName: OpDeleteTodo,
		Variables:     map[string]any{"input": in},
	}
	if err := c.Do(ctx, req, &data); err != nil {
		return core.Note{}, err
	}
	return data.DeleteTodo, nil
}

// ClientState exposes internal state for observability.
type ClientState struct {
	Endpoint   string `json:"endpoint"`
	WSEndpoint string `json:"ws_endpoint"`
	HasAPIKey  bool   `json:"has_api_key"`
}

// State implements introspection.Introspectable.
func (c *Client) State() any {
	return ClientState{
		Endpoint:   c.config.Endpoint,
		WSEndpoint: c.config.WSEndpoint,
		HasAPIKey:  c.config.APIKey != "",
	}
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "graphql"
}

var (
	_ core.Backend                 = (*Client)(nil)
	_ core.Subscriber              = (*Client)(nil)
	_ introspection.Introspectable = (*Client)(nil)
	_ introspection.Component      = (*Client)(nil)
)
