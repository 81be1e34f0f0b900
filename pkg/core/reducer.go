package core

// Reduce applies e to s on behalf of the given session and returns the new
// state. It is total and pure: s is never mutated and unknown events return
// s unchanged.
func Reduce(session ClientID, s State, e Event) State {
	switch e := e.(type) {
	case FetchSucceeded:
		s.Notes = cloneNotes(e.Notes)
		s.Loading = false
	case FetchFailed:
		s.Loading = false
		s.Error = true
	case LocalNoteCreated:
		s.Notes = prepend(s.Notes, e.Note)
		s.Form = FormDraft{}
	case RemoteNoteReceived:
		if ClientID(e.Note.ClientID) == session {
			return s
		}
		s.Notes = prepend(s.Notes, e.Note)
	case FieldChanged:
		s.Form = s.Form.With(e.Field, e.Value)
	case NoteListReplaced:
		s.Notes = cloneNotes(e.Notes)
	}
	return s
}

// prepend returns a new slice with n in front. A note whose id is already
// listed is dropped so ids stay unique.
func prepend(notes []Note, n Note) []Note {
	if indexOf(notes, n.ID) >= 0 {
		return notes
	}
	out := make([]Note, 0, len(notes)+1)
	out = append(out, n)
	return append(out, notes...)
}

// without returns a copy of notes minus the entry with the given id.
// The second result is false when the id is absent, in which case the
// returned slice is notes itself.
func without(notes []Note, id string) ([]Note, bool) {
	i := indexOf(notes, id)
	if i < 0 {
		return notes, false
	}
	out := make([]Note, 0, len(notes)-1)
	out = append(out, notes[:i]...)
	return append(out, notes[i+1:]...), true
}

// toggled returns a copy of notes with the completion flag of id flipped.
func toggled(notes []Note, id string) ([]Note, Note, bool) {
	i := indexOf(notes, id)
	if i < 0 {
		return notes, Note{}, false
	}
	out := cloneNotes(notes)
	out[i].Completed = !out[i].Completed
	return out, out[i], true
}
