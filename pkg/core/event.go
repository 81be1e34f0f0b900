package core

import "fmt"

// Event is a transition request for the store's reducer.
// The set of events is closed: only the types in this file implement it.
type Event interface {
	fmt.Stringer
	isEvent()
}

// FetchSucceeded installs the result of the initial list query.
type FetchSucceeded struct {
	Notes []Note
}

// FetchFailed marks the initial list query as failed.
type FetchFailed struct {
	Err error
}

// LocalNoteCreated prepends a note created by this session and clears the form.
type LocalNoteCreated struct {
	Note Note
}

// RemoteNoteReceived prepends a note pushed by the subscription,
// unless it originated from this session.
type RemoteNoteReceived struct {
	Note Note
}

// FieldChanged sets one form field.
type FieldChanged struct {
	Field Field
	Value string
}

// NoteListReplaced installs a recomputed note list (delete, toggle).
type NoteListReplaced struct {
	Notes []Note
}

func (FetchSucceeded) isEvent()     {}
func (FetchFailed) isEvent()        {}
func (LocalNoteCreated) isEvent()   {}
func (RemoteNoteReceived) isEvent() {}
func (FieldChanged) isEvent()       {}
func (NoteListReplaced) isEvent()   {}

func (e FetchSucceeded) String() string {
	return fmt.Sprintf("FETCH_SUCCEEDED(%d)", len(e.Notes))
}

func (e FetchFailed) String() string {
	return fmt.Sprintf("FETCH_FAILED(%v)", e.Err)
}

func (e LocalNoteCreated) String() string {
	return fmt.Sprintf("LOCAL_NOTE_CREATED(%s)", e.Note.ID)
}

func (e RemoteNoteReceived) String() string {
	return fmt.Sprintf("REMOTE_NOTE_RECEIVED(%s from %s)", e.Note.ID, e.Note.ClientID)
}

func (e FieldChanged) String() string {
	return fmt.Sprintf("FIELD_CHANGED(%s)", e.Field)
}

func (e NoteListReplaced) String() string {
	return fmt.Sprintf("NOTE_LIST_REPLACED(%d)", len(e.Notes))
}
