// Package tui renders a Store in the terminal: the note form on top, the
// list below, a status line at the bottom.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aretw0/jotter/pkg/core"
)

type focus int

const (
	focusName focus = iota
	focusDescription
	focusList
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	descStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
	sectionStyle = lipgloss.NewStyle().MarginTop(1)
)

// stateMsg signals that the store changed. The model re-reads the snapshot
// instead of trusting the message, so a late message never shows stale notes.
type stateMsg struct{}

type mutationErrMsg struct{ err error }

// Model is the bubbletea model over a Store.
type Model struct {
	ctx    context.Context
	store  *core.Store
	states <-chan core.State
	errs   <-chan error

	state  core.State
	cursor int
	focus  focus
	name   textinput.Model
	desc   textinput.Model
	status string
	isErr  bool
}

// New builds a model. errs may be nil; when set, it carries background
// mutation failures to the status line.
func New(ctx context.Context, store *core.Store, errs <-chan error) Model {
	name := textinput.New()
	name.Placeholder = "Name"
	name.CharLimit = 256
	name.Width = 40
	name.Focus()

	desc := textinput.New()
	desc.Placeholder = "Description"
	desc.CharLimit = 1024
	desc.Width = 60

	return Model{
		ctx:    ctx,
		store:  store,
		states: store.Watch(ctx),
		errs:   errs,
		state:  store.Snapshot(),
		focus:  focusName,
		name:   name,
		desc:   desc,
		status: "tab: switch focus • enter: create • space: toggle • d: delete • ctrl+c: quit",
	}
}

// Run mounts the store, runs the program until the user quits and unmounts.
func Run(ctx context.Context, store *core.Store, errs <-chan error) error {
	warning, err := mount(ctx, store)
	if err != nil {
		return err
	}
	defer store.Unmount(context.WithoutCancel(ctx))

	m := New(ctx, store, errs)
	if warning != "" {
		m.setError(warning)
	}
	program := tea.NewProgram(m)
	_, err = program.Run()
	return err
}

// mount loads the store for the UI. A failed fetch is rendered by the list
// view and a failed subscription only costs live updates, so both come back
// as a status-line warning. Anything else is fatal.
func mount(ctx context.Context, store *core.Store) (string, error) {
	err := store.Mount(ctx)
	if err == nil {
		return "", nil
	}
	var (
		fetchErr *core.FetchError
		subErr   *core.SubscribeError
	)
	isFetch := errors.As(err, &fetchErr)
	isSub := errors.As(err, &subErr)
	switch {
	case isSub && !isFetch:
		return "live updates unavailable: " + subErr.Err.Error(), nil
	case isFetch:
		return "", nil
	}
	return "", err
}

func waitForState(ch <-chan core.State) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateMsg{}
	}
}

func waitForError(ch <-chan error) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return mutationErrMsg{err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForState(m.states), waitForError(m.errs))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.refresh()
		return m, waitForState(m.states)
	case mutationErrMsg:
		m.setError(msg.err.Error())
		return m, waitForError(m.errs)
	case tea.WindowSizeMsg:
		if msg.Width > 20 {
			m.desc.Width = msg.Width - 20
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		m.setFocus((m.focus + 1) % 3)
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + 2) % 3)
		return m, nil
	}

	if m.focus == focusList {
		return m.updateList(msg.String())
	}
	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		m.submit()
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusName {
		before := m.name.Value()
		m.name, cmd = m.name.Update(msg)
		if v := m.name.Value(); v != before {
			m.store.SetField(core.FieldName, v)
		}
	} else {
		before := m.desc.Value()
		m.desc, cmd = m.desc.Update(msg)
		if v := m.desc.Value(); v != before {
			m.store.SetField(core.FieldDescription, v)
		}
	}
	m.refresh()
	return m, cmd
}

func (m *Model) submit() {
	n, err := m.store.Create(m.ctx)
	if err != nil {
		m.setError(err.Error())
		return
	}
	m.name.SetValue("")
	m.desc.SetValue("")
	m.setFocus(focusName)
	m.setInfo(fmt.Sprintf("Created %q", n.Name))
	m.refresh()
}

func (m Model) updateList(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return m, tea.Quit
	case "down", "j":
		m.cursor = clampCursor(m.cursor+1, len(m.state.Notes))
	case "up", "k":
		m.cursor = clampCursor(m.cursor-1, len(m.state.Notes))
	case " ", "space", "x":
		if n, ok := m.selected(); ok {
			updated, err := m.store.ToggleCompleted(m.ctx, n)
			if err != nil {
				m.setError(err.Error())
			} else {
				m.setInfo(fmt.Sprintf("%s: %s", updated.Name, humanDone(updated.Completed)))
			}
		}
	case "d", "delete":
		if n, ok := m.selected(); ok {
			if err := m.store.Remove(m.ctx, n.ID); err != nil {
				m.setError(err.Error())
			} else {
				m.setInfo(fmt.Sprintf("Deleted %q", n.Name))
			}
		}
	case "r":
		if err := m.store.List(m.ctx); err != nil {
			m.setError(err.Error())
		}
	}
	m.refresh()
	return m, nil
}

func (m *Model) refresh() {
	m.state = m.store.Snapshot()
	m.cursor = clampCursor(m.cursor, len(m.state.Notes))
}

func (m *Model) selected() (core.Note, bool) {
	if len(m.state.Notes) == 0 {
		return core.Note{}, false
	}
	return m.state.Notes[clampCursor(m.cursor, len(m.state.Notes))], true
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	m.name.Blur()
	m.desc.Blur()
	switch f {
	case focusName:
		m.name.Focus()
	case focusDescription:
		m.desc.Focus()
	}
}

func (m *Model) setError(msg string) {
	m.status = msg
	m.isErr = true
}

func (m *Model) setInfo(msg string) {
	m.status = msg
	m.isErr = false
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Notes"))
	b.WriteString("\n\n")
	b.WriteString(m.name.View())
	b.WriteString("\n")
	b.WriteString(m.desc.View())
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(m.renderList()))
	b.WriteString("\n\n")
	if m.isErr {
		b.WriteString(errorStyle.Render(m.status))
	} else {
		b.WriteString(helpStyle.Render(m.status))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderList() string {
	switch m.state.Status() {
	case core.StatusLoading:
		return helpStyle.Render("Loading notes...")
	case core.StatusErrored:
		return errorStyle.Render("Could not load notes.")
	}
	if len(m.state.Notes) == 0 {
		return helpStyle.Render("No notes yet.")
	}

	var b strings.Builder
	for i, n := range m.state.Notes {
		prefix := "  "
		if m.focus == focusList && i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		box := "[ ]"
		name := n.Name
		if n.Completed {
			box = "[x]"
			name = doneStyle.Render(name)
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", prefix, box, name, descStyle.Render(n.Description)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func clampCursor(cur, n int) int {
	if n <= 0 || cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
