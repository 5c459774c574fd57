package crossword

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestoresClueDirections(t *testing.T) {
	s := keys(BuildInitialState(miniPuzzle()), "C", "A")
	s = Reduce(s, ToggleAutocheck{})
	s = Reduce(s, Tick{})

	data, err := EncodeSnapshot(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"Direction"`)

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Fatalf("snapshot differs (-want +got):\n%s", diff)
	}
	assert.Equal(t, Down, got.Clues.Down[0].Direction)
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"grid": 12`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSnapshot)
}

func TestValidateSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *State)
	}{
		{"ragged grid", func(s *State) { s.Grid[1] = s.Grid[1][:2] }},
		{"black cell with guess", func(s *State) { s.Grid[1][1].Guess = "A" }},
		{"missing answer", func(s *State) { s.Grid[0][1].Answer = "" }},
		{"long answer", func(s *State) { s.Grid[0][1].Answer = "AB" }},
		{"blank answer", func(s *State) { s.Grid[0][1].Answer = " " }},
		{"long guess", func(s *State) { s.Grid[0][1].Guess = "AB" }},
		{"bad direction", func(s *State) { s.Direction = "diagonal" }},
		{"cursor on black", func(s *State) { s.Position = Position{Row: 1, Col: 1} }},
		{"cursor off grid", func(s *State) { s.Position = Position{Row: 9, Col: 0} }},
		{"negative timer", func(s *State) { s.Seconds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := BuildInitialState(miniPuzzle())
			tt.mutate(&s)
			assert.ErrorIs(t, ValidateSnapshot(s), ErrInvalidSnapshot)
		})
	}

	assert.NoError(t, ValidateSnapshot(BuildInitialState(miniPuzzle())))
}

func TestSameLayout(t *testing.T) {
	fresh := BuildInitialState(miniPuzzle())
	played := keys(fresh, "C", "A", "T")
	assert.NoError(t, SameLayout(played, fresh))

	assert.ErrorIs(t, SameLayout(BuildInitialState(catPuzzle()), fresh), ErrInvalidSnapshot)

	other := miniPuzzle()
	other.Clues.Down[1].Answer = "TOY"
	assert.ErrorIs(t, SameLayout(BuildInitialState(other), fresh), ErrInvalidSnapshot)
}
