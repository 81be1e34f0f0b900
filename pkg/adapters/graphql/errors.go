package graphql

import (
	"fmt"
	"strings"
)

// ResponseError is returned when the server answers with a GraphQL errors list.
type ResponseError struct {
	Messages []string
}

func (e *ResponseError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("graphql: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("graphql: unexpected status %d: %s", e.Code, e.Body)
}
