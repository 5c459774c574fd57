package crossword

import (
	"unicode"
	"unicode/utf8"
)

// MaxGridSize bounds both grid dimensions.
const MaxGridSize = 256

// BuildInitialState lays out the grid described by in and returns a fresh
// session: no guesses, cursor on the first playable cell, timer at zero.
//
// Grid bounds come from the clue geometry alone. Cells not covered by any
// clue are black. A clue that does not fit a MaxGridSize square is
// dropped. A puzzle
// without usable clues still yields a valid, if empty, State.
func BuildInitialState(in PuzzleInput) State {
	rows, cols := extent(in)

	grid := make([][]Cell, rows)
	for r := range grid {
		grid[r] = make([]Cell, cols)
	}

	s := State{
		Grid: grid,
		Clues: ClueSet[Clue]{
			Across: place(grid, in.Clues.Across, Across),
			Down:   place(grid, in.Clues.Down, Down),
		},
		Direction: Across,
	}
	s.Position = firstUsed(grid)
	return s
}

// extent returns the grid size touched by every clue in both lists.
func extent(in PuzzleInput) (rows, cols int) {
	maxRow, maxCol := -1, -1
	measure := func(specs []ClueSpec, d Direction) {
		for _, c := range specs {
			if !c.Fits(d) {
				continue
			}
			n := len([]rune(c.Answer))
			endRow, endCol := c.Row, c.Col
			if d == Down {
				endRow += n - 1
			} else {
				endCol += n - 1
			}
			maxRow = max(maxRow, endRow)
			maxCol = max(maxCol, endCol)
		}
	}
	measure(in.Clues.Across, Across)
	measure(in.Clues.Down, Down)
	return maxRow + 1, maxCol + 1
}

// place marks the cells of every clue in specs as used and returns the
// runtime clue list for direction d.
func place(grid [][]Cell, specs []ClueSpec, d Direction) []Clue {
	clues := make([]Clue, 0, len(specs))
	for _, spec := range specs {
		if !spec.Fits(d) {
			continue
		}
		start := Position{Row: spec.Row, Col: spec.Col}
		for i, ch := range []rune(spec.Answer) {
			if unicode.IsSpace(ch) {
				continue
			}
			p := start.Step(d, i)
			cell := &grid[p.Row][p.Col]
			cell.Used = true
			cell.Answer = string(unicode.ToUpper(ch))
		}
		// A square starting both an across and a down clue is numbered once.
		if start.Row < len(grid) && start.Col < len(grid[start.Row]) {
			if cell := &grid[start.Row][start.Col]; cell.Used && cell.Num == "" {
				cell.Num = spec.Num
			}
		}
		clues = append(clues, Clue{
			Num:       spec.Num,
			Row:       spec.Row,
			Col:       spec.Col,
			Answer:    spec.Answer,
			Clue:      spec.Clue,
			Direction: d,
		})
	}
	return clues
}

// Fits reports whether every letter of c, laid out in direction d, lands
// inside a MaxGridSize square.
func (c ClueSpec) Fits(d Direction) bool {
	if c.Row < 0 || c.Col < 0 || c.Row >= MaxGridSize || c.Col >= MaxGridSize {
		return false
	}
	n := utf8.RuneCountInString(c.Answer)
	start := c.Col
	if d == Down {
		start = c.Row
	}
	return n <= MaxGridSize-start
}

// firstUsed scans row-major for the first playable cell.
func firstUsed(grid [][]Cell) Position {
	for r, row := range grid {
		for c, cell := range row {
			if cell.Used {
				return Position{Row: r, Col: c}
			}
		}
	}
	return Position{}
}
