package crossword

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidSnapshot is returned for persisted states that are well-formed
// JSON but break a grid invariant, or that belong to a different puzzle.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// EncodeSnapshot serialises s for a persistence slot.
func EncodeSnapshot(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and validates a persisted state.
func DecodeSnapshot(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := ValidateSnapshot(s); err != nil {
		return State{}, err
	}
	return s, nil
}

// ValidateSnapshot checks the structural invariants of a state: a
// rectangular grid, bare black squares, one answer letter per used cell,
// a known direction and a cursor on a used cell.
func ValidateSnapshot(s State) error {
	cols := s.Cols()
	anyUsed := false
	for r, row := range s.Grid {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidSnapshot, r, len(row), cols)
		}
		for c, cell := range row {
			if !cell.Used {
				if cell.Answer != "" || cell.Guess != "" || cell.Num != "" {
					return fmt.Errorf("%w: black cell (%d,%d) carries data", ErrInvalidSnapshot, r, c)
				}
				continue
			}
			anyUsed = true
			if !oneLetter(cell.Answer) {
				return fmt.Errorf("%w: cell (%d,%d) answer %q", ErrInvalidSnapshot, r, c, cell.Answer)
			}
			if cell.Guess != "" && utf8.RuneCountInString(cell.Guess) != 1 {
				return fmt.Errorf("%w: cell (%d,%d) guess %q", ErrInvalidSnapshot, r, c, cell.Guess)
			}
		}
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("%w: direction %q", ErrInvalidSnapshot, s.Direction)
	}
	if anyUsed && !s.UsedAt(s.Position) {
		return fmt.Errorf("%w: cursor (%d,%d) is not on a used cell", ErrInvalidSnapshot, s.Position.Row, s.Position.Col)
	}
	if s.Seconds < 0 {
		return fmt.Errorf("%w: negative timer", ErrInvalidSnapshot)
	}
	return nil
}

// SameLayout checks that snap was taken on the puzzle that produced fresh:
// same dimensions, same black squares, same answers.
func SameLayout(snap, fresh State) error {
	if snap.Rows() != fresh.Rows() || snap.Cols() != fresh.Cols() {
		return fmt.Errorf("%w: grid is %dx%d, puzzle is %dx%d",
			ErrInvalidSnapshot, snap.Rows(), snap.Cols(), fresh.Rows(), fresh.Cols())
	}
	for r, row := range fresh.Grid {
		for c, cell := range row {
			got := snap.Grid[r][c]
			if got.Used != cell.Used || got.Answer != cell.Answer {
				return fmt.Errorf("%w: cell (%d,%d) differs from puzzle", ErrInvalidSnapshot, r, c)
			}
		}
	}
	return nil
}

func oneLetter(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	return size > 0 && size == len(s) && !unicode.IsSpace(r)
}
