// Package tui is a terminal client for one crossword session.
package tui

import (
	"context"
	"errors"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bodul/campus-crossword/internal/crossword"
	"github.com/bodul/campus-crossword/internal/session"
)

// Dispatcher is the part of a session host the client drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, a crossword.Action) (session.View, error)
	View() session.View
}

// ViewMsg carries a fresh session view into the program from the host's
// change callback.
type ViewMsg session.View

type errMsg struct{ err error }

// Model is the bubbletea model of a play session.
type Model struct {
	host     Dispatcher
	title    string
	view     session.View
	err      error
	quitting bool
}

// NewModel returns a model showing the host's current view.
func NewModel(host Dispatcher, title string) Model {
	return Model{host: host, title: title, view: host.View()}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ViewMsg:
		m.view = session.View(msg)
		m.err = nil
		return m, nil

	case errMsg:
		m.err = msg.err
		if errors.Is(msg.err, session.ErrClosed) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		a, ok := keyAction(msg, m.view)
		if !ok {
			return m, nil
		}
		return m, dispatch(m.host, a)
	}
	return m, nil
}

// dispatch must run as a command: the host's change callback sends into
// the program, so calling Dispatch from Update would deadlock. Views only
// arrive through that callback; a reply could overtake a newer tick.
func dispatch(host Dispatcher, a crossword.Action) tea.Cmd {
	return func() tea.Msg {
		if _, err := host.Dispatch(context.Background(), a); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// Run opens a session for puzzle and plays it in the terminal until the
// player quits. The session is closed, and its last snapshot written,
// before Run returns.
func Run(ctx context.Context, puzzle crossword.PuzzleInput, title string, cfg session.Config, opts ...tea.ProgramOption) error {
	var program atomic.Pointer[tea.Program]
	onChange := cfg.OnChange
	cfg.OnChange = func(v session.View) {
		if onChange != nil {
			onChange(v)
		}
		if p := program.Load(); p != nil {
			p.Send(ViewMsg(v))
		}
	}

	host := session.Open(ctx, puzzle, cfg)
	p := tea.NewProgram(NewModel(host, title), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	program.Store(p)

	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}
	return errors.Join(runErr, host.Close(context.WithoutCancel(ctx)))
}
