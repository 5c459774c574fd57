package crossword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{`{"type":"selectCell","row":2,"col":1}`, SelectCell{Row: 2, Col: 1}},
		{`{"type":"keyDown","key":"Backspace"}`, KeyDown{Key: KeyBackspace}},
		{`{"type":"tick"}`, Tick{}},
		{`{"type":"toggleAutocheck"}`, ToggleAutocheck{}},
		{`{"type":"togglePaused"}`, TogglePaused{}},
		{`{"type":"setWon","to":true}`, SetWon{To: true}},
		{`{"type":"resetGrid"}`, ResetGrid{}},
		{`{"type":"highlightWord","word":3}`, Unknown{Tag: "highlightWord"}},
		{`{}`, Unknown{}},
	}
	for _, tt := range tests {
		got, err := DecodeAction([]byte(tt.in))
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDecodeActionMalformed(t *testing.T) {
	for _, in := range []string{`[1,2]`, `"tick"`, `{"type":"selectCell","row":"x"}`, `{`} {
		_, err := DecodeAction([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestLoadStateActionCarriesSnapshot(t *testing.T) {
	s := keys(BuildInitialState(catPuzzle()), "C")

	data, err := EncodeAction(LoadState{State: s})
	require.NoError(t, err)

	got, err := DecodeAction(data)
	require.NoError(t, err)
	load, ok := got.(LoadState)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, "C", load.State.Grid[0][0].Guess)
	assert.Equal(t, Across, load.State.Clues.Across[0].Direction)
}

func TestEncodeSelectCellKeepsOrigin(t *testing.T) {
	data, err := EncodeAction(SelectCell{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"selectCell","row":0,"col":0}`, string(data))
}
