package crossword

import (
	"unicode"
	"unicode/utf8"
)

// Key names handled by KeyDown besides single letters.
const (
	KeyBackspace  = "Backspace"
	KeyDelete     = "Delete"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
	KeyArrowUp    = "ArrowUp"
	KeyArrowDown  = "ArrowDown"
)

// Reduce applies a to s and returns the resulting state. It never fails:
// actions that do not apply return s unchanged.
func Reduce(s State, a Action) State {
	next, _ := Step(s, a)
	return next
}

// Step is Reduce that also reports whether the state changed. When changed
// is false the returned State is s itself.
func Step(s State, a Action) (next State, changed bool) {
	switch a := a.(type) {
	case SelectCell:
		return selectCell(s, Position{Row: a.Row, Col: a.Col})
	case KeyDown:
		return keyDown(s, a.Key)
	case Tick:
		if s.Paused || s.Won {
			return s, false
		}
		s.Seconds++
		return s, true
	case ToggleAutocheck:
		s.Autocheck = !s.Autocheck
		return s, true
	case TogglePaused:
		s.Paused = !s.Paused
		return s, true
	case SetWon:
		if s.Won == a.To {
			return s, false
		}
		s.Won = a.To
		return s, true
	case ResetGrid:
		if a.Puzzle == nil {
			return s, false
		}
		return BuildInitialState(*a.Puzzle), true
	case LoadState:
		return a.State.Clone(), true
	default:
		return s, false
	}
}

func frozen(s State) bool {
	return s.Paused || s.Won
}

func selectCell(s State, target Position) (State, bool) {
	if frozen(s) || !s.UsedAt(target) {
		return s, false
	}
	if target == s.Position {
		s.Direction = s.Direction.Flip()
		return s, true
	}
	s.Position = target
	return s, true
}

func keyDown(s State, key string) (State, bool) {
	if frozen(s) || !s.UsedAt(s.Position) {
		return s, false
	}

	switch key {
	case KeyBackspace, KeyDelete:
		return write(s, "", -1)
	case KeyArrowLeft:
		return arrow(s, Across, -1)
	case KeyArrowRight:
		return arrow(s, Across, 1)
	case KeyArrowUp:
		return arrow(s, Down, -1)
	case KeyArrowDown:
		return arrow(s, Down, 1)
	}

	if letter, ok := singleLetter(key); ok {
		return write(s, letter, 1)
	}
	return s, false
}

// write stores guess under the cursor, then moves delta cells along the
// current direction.
func write(s State, guess string, delta int) (State, bool) {
	dest := advance(s, delta)
	if s.Grid[s.Position.Row][s.Position.Col].Guess == guess && dest == s.Position {
		return s, false
	}
	s.Grid = setGuess(s.Grid, s.Position, guess)
	s.Position = dest
	return s, true
}

// arrow moves one cell along d and takes d as the new direction. Moving
// onto a black square or off the grid is ignored entirely.
func arrow(s State, d Direction, delta int) (State, bool) {
	dest := s.Position.Step(d, delta)
	if !s.UsedAt(dest) {
		return s, false
	}
	s.Position = dest
	s.Direction = d
	return s, true
}

// advance returns the position one cell along the current direction, or
// the current position when that cell is black or off the grid. Clue
// boundaries do not stop the cursor.
func advance(s State, delta int) Position {
	dest := s.Position.Step(s.Direction, delta)
	if !s.UsedAt(dest) {
		return s.Position
	}
	return dest
}

// setGuess returns a grid with the guess at p replaced. Only the touched
// row is copied; s.Grid of the caller's state stays intact.
func setGuess(grid [][]Cell, p Position, guess string) [][]Cell {
	out := make([][]Cell, len(grid))
	copy(out, grid)
	row := make([]Cell, len(grid[p.Row]))
	copy(row, grid[p.Row])
	row[p.Col].Guess = guess
	out[p.Row] = row
	return out
}

func singleLetter(key string) (string, bool) {
	r, size := utf8.DecodeRuneInString(key)
	if size == 0 || size != len(key) || !unicode.IsLetter(r) {
		return "", false
	}
	return string(unicode.ToUpper(r)), true
}
