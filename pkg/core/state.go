package core

// Status is the lifecycle phase of a Store.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusErrored Status = "errored"
)

// State is the whole client-side state of a Store.
type State struct {
	Notes   []Note    `json:"notes"`
	Loading bool      `json:"loading"`
	Error   bool      `json:"error"`
	Form    FormDraft `json:"form"`
}

// InitialState is the state of a freshly constructed store.
func InitialState() State {
	return State{
		Notes:   []Note{},
		Loading: true,
	}
}

// Status derives the lifecycle phase from the flags.
func (s State) Status() Status {
	switch {
	case s.Error:
		return StatusErrored
	case s.Loading:
		return StatusLoading
	default:
		return StatusReady
	}
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	s.Notes = cloneNotes(s.Notes)
	return s
}

// Find returns the note with the given id.
func (s State) Find(id string) (Note, bool) {
	i := indexOf(s.Notes, id)
	if i < 0 {
		return Note{}, false
	}
	return s.Notes[i], true
}

func cloneNotes(notes []Note) []Note {
	out := make([]Note, len(notes))
	copy(out, notes)
	return out
}
