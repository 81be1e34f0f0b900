package graphql

import (
	"encoding/json"

	"github.com/aretw0/jotter/pkg/core"
)

// Request is a GraphQL request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL response body.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []ErrorMessage  `json:"errors,omitempty"`
}

// ErrorMessage is one entry of a response's errors list.
type ErrorMessage struct {
	Message string `json:"message"`
}

// Response data shapes.
type (
	ListTodosData struct {
		ListTodos struct {
			Items []core.Note `json:"items"`
		} `json:"listTodos"`
	}
	CreateTodoData struct {
		CreateTodo core.Note `json:"createTodo"`
	}
	UpdateTodoData struct {
		UpdateTodo core.Note `json:"updateTodo"`
	}
	DeleteTodoData struct {
		DeleteTodo core.Note `json:"deleteTodo"`
	}
	OnCreateTodoData struct {
		OnCreateTodo core.Note `json:"onCreateTodo"`
	}
)

// Subprotocol is the WebSocket subprotocol spoken for subscriptions.
const Subprotocol = "graphql-transport-ws"

// MessageType is the type field of a graphql-transport-ws message.
type MessageType string

const (
	MsgConnectionInit MessageType = "connection_init"
	MsgConnectionAck  MessageType = "connection_ack"
	MsgPing           MessageType = "ping"
	MsgPong           MessageType = "pong"
	MsgSubscribe      MessageType = "subscribe"
	MsgNext           MessageType = "next"
	MsgError          MessageType = "error"
	MsgComplete       MessageType = "complete"
)

// Message is a graphql-transport-ws frame.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// APIKeyHeader carries the API key on HTTP requests and in the
// connection_init payload.
const APIKeyHeader = "x-api-key"

// CloseForbidden is the close code sent when connection_init is rejected.
const CloseForbidden = 4403
