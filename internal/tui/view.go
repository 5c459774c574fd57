package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bodul/campus-crossword/internal/crossword"
	"github.com/bodul/campus-crossword/internal/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	blackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	clueStyle   = lipgloss.NewStyle().Background(lipgloss.Color("24")).Foreground(lipgloss.Color("231"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("214")).Foreground(lipgloss.Color("16")).Bold(true)
	wonStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(wrongColor)
)

var wrongColor = lipgloss.Color("196")

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := m.view

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(renderGrid(v))
	b.WriteString("\n")
	b.WriteString(renderClue(v))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("tab direction · ctrl+p pause · ctrl+k autocheck · ctrl+r reset · esc quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHeader() string {
	v := m.view
	status := v.Elapsed
	switch v.Phase {
	case session.PhasePaused:
		status += "  paused"
	case session.PhaseWon:
		status = wonStyle.Render("solved in " + v.Elapsed)
	}
	if v.State.Autocheck && v.Phase != session.PhaseWon {
		status += "  autocheck"
	}
	return titleStyle.Render(m.title) + "  " + status
}

func renderGrid(v session.View) string {
	s := v.State
	clue, hasClue := crossword.SelectedClue(s)

	var b strings.Builder
	for r, row := range s.Grid {
		for c, cell := range row {
			p := crossword.Position{Row: r, Col: c}
			if !cell.Used {
				b.WriteString(blackStyle.Render("███"))
				continue
			}

			letter := cell.Guess
			if letter == "" || s.Paused {
				letter = "·"
			}
			text := " " + letter + " "

			style := cellStyle
			switch {
			case p == s.Position && !s.Won:
				style = cursorStyle
			case hasClue && clue.Covers(p):
				style = clueStyle
			}
			if s.Autocheck && !s.Paused && crossword.Wrong(s, p) {
				style = style.Foreground(wrongColor).Bold(true)
			}
			b.WriteString(style.Render(text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderClue(v session.View) string {
	if v.Phase == session.PhasePaused {
		return mutedStyle.Render("(paused)")
	}
	if v.SelectedClue == nil {
		return mutedStyle.Render(fmt.Sprintf("no %s clue here", v.State.Direction))
	}
	c := v.SelectedClue
	return fmt.Sprintf("%s %s: %s", c.Num, c.Direction, c.Clue)
}
