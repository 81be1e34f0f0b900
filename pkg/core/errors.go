package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound   = errors.New("note not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("note already exists")
	ErrInvalidID  = errors.New("note has no ID")
)

// FetchError reports that the initial list query failed.
// The store records it as a terminal error flag.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch notes: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError is returned when the form is not fit for submission.
// Message is meant to be shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// MutationError reports a failed create, update or delete call.
// The optimistic local change it belonged to is kept.
type MutationError struct {
	Op  string
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// SubscribeError reports that the onCreateTodo subscription could not be
// opened. The subscription is optional; the list still loads without it.
type SubscribeError struct {
	Err error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("failed to subscribe: %v", e.Err)
}

func (e *SubscribeError) Unwrap() error { return e.Err }
