package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bodul/campus-crossword/internal/crossword"
	"github.com/bodul/campus-crossword/internal/session"
)

// keyAction maps a key press to the action it stands for. ok is false for
// keys the game does not use.
func keyAction(msg tea.KeyMsg, v session.View) (a crossword.Action, ok bool) {
	switch msg.String() {
	case "backspace":
		return crossword.KeyDown{Key: crossword.KeyBackspace}, true
	case "delete":
		return crossword.KeyDown{Key: crossword.KeyDelete}, true
	case "left":
		return crossword.KeyDown{Key: crossword.KeyArrowLeft}, true
	case "right":
		return crossword.KeyDown{Key: crossword.KeyArrowRight}, true
	case "up":
		return crossword.KeyDown{Key: crossword.KeyArrowUp}, true
	case "down":
		return crossword.KeyDown{Key: crossword.KeyArrowDown}, true
	case "tab":
		// Selecting the current cell again flips direction.
		p := v.State.Position
		return crossword.SelectCell{Row: p.Row, Col: p.Col}, true
	case "ctrl+p":
		return crossword.TogglePaused{}, true
	case "ctrl+k":
		return crossword.ToggleAutocheck{}, true
	case "ctrl+r":
		return crossword.ResetGrid{}, true
	}

	if msg.Type == tea.KeyRunes && !msg.Alt && len(msg.Runes) == 1 {
		return crossword.KeyDown{Key: string(msg.Runes[0])}, true
	}
	return nil, false
}
