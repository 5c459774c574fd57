package crossword

import "fmt"

// SelectedClue returns the clue in the current direction whose span covers
// the cursor. ok is false when no such clue exists, which happens after a
// direction flip on a cell that only belongs to one clue.
func SelectedClue(s State) (clue Clue, ok bool) {
	list := s.Clues.Across
	if s.Direction == Down {
		list = s.Clues.Down
	}
	for _, c := range list {
		if c.Covers(s.Position) {
			return c, true
		}
	}
	return Clue{}, false
}

// Bounds is the rectangle covered by the grid, inclusive on both ends.
// An empty grid has MaxRow and MaxCol of -1.
type Bounds struct {
	MinRow int `json:"min_row"`
	MinCol int `json:"min_col"`
	MaxRow int `json:"max_row"`
	MaxCol int `json:"max_col"`
}

// GridBounds returns the extent of every grid cell, used or not.
func GridBounds(s State) Bounds {
	b := Bounds{MaxRow: -1, MaxCol: -1}
	for r, row := range s.Grid {
		if len(row) == 0 {
			continue
		}
		b.MaxRow = r
		b.MaxCol = max(b.MaxCol, len(row)-1)
	}
	return b
}

// Solved reports whether every used cell holds its answer. A grid without
// used cells is trivially solved.
func Solved(grid [][]Cell) bool {
	for _, row := range grid {
		for _, cell := range row {
			if cell.Used && cell.Guess != cell.Answer {
				return false
			}
		}
	}
	return true
}

// Wrong reports whether the cell at p carries a guess that differs from its
// answer. Autocheck displays use it; it has no effect on winning.
func Wrong(s State, p Position) bool {
	if !s.UsedAt(p) {
		return false
	}
	cell := s.Grid[p.Row][p.Col]
	return cell.Guess != "" && cell.Guess != cell.Answer
}

// FormatElapsed renders seconds as M:SS, or H:MM:SS from one hour on.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, sec := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
