package core

// ClientID identifies one client session. It is generated once per process
// and stamped on every note the session creates.
type ClientID string

// Note is the central entity of the domain: a todo record with a
// completion flag.
type Note struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Completed   bool   `json:"completed" yaml:"completed"`
	ClientID    string `json:"clientId" yaml:"clientId"`
}

// Field names a FormDraft input.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
)

// FormDraft holds the pending create form. It is cleared once a note is
// created from it.
type FormDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// With returns a copy of the draft with the given field set.
// Unknown fields leave the draft unchanged.
func (f FormDraft) With(field Field, value string) FormDraft {
	switch field {
	case FieldName:
		f.Name = value
	case FieldDescription:
		f.Description = value
	}
	return f
}

// Valid reports whether both fields are filled in.
func (f FormDraft) Valid() bool {
	return f.Name != "" && f.Description != ""
}

// UpdateInput is the payload of the updateTodo mutation.
type UpdateInput struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

// DeleteInput is the payload of the deleteTodo mutation.
type DeleteInput struct {
	ID string `json:"id"`
}

// indexOf returns the position of the note with the given id, or -1.
func indexOf(notes []Note, id string) int {
	for i, n := range notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
