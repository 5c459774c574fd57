// Package crossword implements the play engine for a crossword puzzle:
// building the initial grid from a puzzle definition, reducing input
// actions into new session states, and deriving read-only values such as
// the selected clue.
//
// Everything in this package is pure. Nothing here performs I/O or keeps
// global state; the session host owns timers and persistence.
package crossword

import (
	"encoding/json"
	"slices"
)

// Direction is the orientation of the cursor.
type Direction string

const (
	Across Direction = "across"
	Down   Direction = "down"
)

// Flip returns the other direction.
func (d Direction) Flip() Direction {
	if d == Down {
		return Across
	}
	return Down
}

// Valid reports whether d is across or down.
func (d Direction) Valid() bool {
	return d == Across || d == Down
}

// ClueSpec is one clue as stored in the content database.
// Row and Col are 0-based coordinates of the first letter.
type ClueSpec struct {
	Num    string `json:"num"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Answer string `json:"answer"`
	Clue   string `json:"clue"`
}

// ClueSet groups clues by direction.
type ClueSet[T any] struct {
	Across []T `json:"across"`
	Down   []T `json:"down"`
}

// PuzzleInput is the immutable puzzle definition supplied by the content store.
type PuzzleInput struct {
	Author string            `json:"author"`
	Date   string            `json:"date"` // ISO-8601
	Clues  ClueSet[ClueSpec] `json:"clues"`
}

// Cell is one grid position. Used=false marks a black square, which never
// carries an answer, guess or number.
type Cell struct {
	Used   bool   `json:"used"`
	Answer string `json:"answer,omitempty"`
	Guess  string `json:"guess,omitempty"`
	Num    string `json:"num,omitempty"`
}

// Clue is the runtime copy of a ClueSpec, kept per direction.
type Clue struct {
	Num       string    `json:"num"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Answer    string    `json:"answer"`
	Clue      string    `json:"clue"`
	Direction Direction `json:"-"`
}

// Len is the number of cells the clue spans.
func (c Clue) Len() int {
	return len([]rune(c.Answer))
}

// Covers reports whether the clue's span includes pos.
func (c Clue) Covers(pos Position) bool {
	n := c.Len()
	switch c.Direction {
	case Across:
		return pos.Row == c.Row && pos.Col >= c.Col && pos.Col < c.Col+n
	case Down:
		return pos.Col == c.Col && pos.Row >= c.Row && pos.Row < c.Row+n
	}
	return false
}

// Position is a cursor location.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Step returns the neighbouring position delta cells away along d.
func (p Position) Step(d Direction, delta int) Position {
	if d == Down {
		return Position{Row: p.Row + delta, Col: p.Col}
	}
	return Position{Row: p.Row, Col: p.Col + delta}
}

// State is one play session. It is treated as immutable: Reduce returns a
// new State and never writes through the slices of the one it was given.
type State struct {
	Grid      [][]Cell      `json:"grid"`
	Clues     ClueSet[Clue] `json:"clues"`
	Position  Position      `json:"position"`
	Direction Direction     `json:"direction"`
	Seconds   int           `json:"seconds"`
	Autocheck bool          `json:"autocheck"`
	Paused    bool          `json:"paused"`
	Won       bool          `json:"won"`
}

// Rows returns the grid height.
func (s State) Rows() int {
	return len(s.Grid)
}

// Cols returns the grid width.
func (s State) Cols() int {
	if len(s.Grid) == 0 {
		return 0
	}
	return len(s.Grid[0])
}

// InBounds reports whether p addresses a cell of the grid.
func (s State) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < len(s.Grid) && p.Col >= 0 && p.Col < len(s.Grid[p.Row])
}

// UsedAt reports whether p is in bounds and playable.
func (s State) UsedAt(p Position) bool {
	return s.InBounds(p) && s.Grid[p.Row][p.Col].Used
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Grid = cloneGrid(s.Grid)
	out.Clues = ClueSet[Clue]{
		Across: slices.Clone(s.Clues.Across),
		Down:   slices.Clone(s.Clues.Down),
	}
	return out
}

// Equal reports whether s and o hold the same grid, clues, cursor, timer
// and flags.
func (s State) Equal(o State) bool {
	return s.Position == o.Position &&
		s.Direction == o.Direction &&
		s.Seconds == o.Seconds &&
		s.Autocheck == o.Autocheck &&
		s.Paused == o.Paused &&
		s.Won == o.Won &&
		slices.EqualFunc(s.Grid, o.Grid, slices.Equal[[]Cell]) &&
		slices.Equal(s.Clues.Across, o.Clues.Across) &&
		slices.Equal(s.Clues.Down, o.Clues.Down)
}

func cloneGrid(g [][]Cell) [][]Cell {
	if g == nil {
		return nil
	}
	out := make([][]Cell, len(g))
	for i, row := range g {
		out[i] = slices.Clone(row)
	}
	return out
}

// clueSetJSON carries the clue fields without the direction, which is implied
// by the list the clue lives in.
type clueSetJSON struct {
	Across []Clue `json:"across"`
	Down   []Clue `json:"down"`
}

// UnmarshalJSON restores the per-clue direction from the list it came from.
func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	var aux struct {
		plain
		Clues clueSetJSON `json:"clues"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = State(aux.plain)
	s.Clues = ClueSet[Clue]{
		Across: withDirection(aux.Clues.Across, Across),
		Down:   withDirection(aux.Clues.Down, Down),
	}
	return nil
}

func withDirection(clues []Clue, d Direction) []Clue {
	if clues == nil {
		return nil
	}
	out := make([]Clue, len(clues))
	for i, c := range clues {
		c.Direction = d
		out[i] = c
	}
	return out
}
