package crossword

import (
	"encoding/json"
	"fmt"
)

// Action is one input event for Reduce. The set of variants is closed;
// Unknown stands in for anything a newer client might send.
type Action interface {
	// Type is the wire tag of the action.
	Type() string
	isAction()
}

// SelectCell moves the cursor to a cell, or flips direction when the cell
// is already under the cursor.
type SelectCell struct {
	Row int
	Col int
}

// KeyDown is a key press captured while the grid has focus. Key uses DOM
// key names: single letters, "Backspace", "Delete", "ArrowLeft" and so on.
type KeyDown struct {
	Key string
}

// Tick is one elapsed second.
type Tick struct{}

type ToggleAutocheck struct{}

type TogglePaused struct{}

// SetWon is dispatched by the host after it re-derives the win flag.
type SetWon struct {
	To bool
}

// ResetGrid starts the puzzle over. A nil Puzzle makes the action a no-op
// in the reducer; the session host fills in its own puzzle.
type ResetGrid struct {
	Puzzle *PuzzleInput
}

// LoadState replaces the whole state with a restored snapshot.
type LoadState struct {
	State State
}

// Unknown is any action with an unrecognised tag.
type Unknown struct {
	Tag string
}

const (
	TypeSelectCell      = "selectCell"
	TypeKeyDown         = "keyDown"
	TypeTick            = "tick"
	TypeToggleAutocheck = "toggleAutocheck"
	TypeTogglePaused    = "togglePaused"
	TypeSetWon          = "setWon"
	TypeResetGrid       = "resetGrid"
	TypeLoadState       = "loadState"
)

func (SelectCell) Type() string      { return TypeSelectCell }
func (KeyDown) Type() string         { return TypeKeyDown }
func (Tick) Type() string            { return TypeTick }
func (ToggleAutocheck) Type() string { return TypeToggleAutocheck }
func (TogglePaused) Type() string    { return TypeTogglePaused }
func (SetWon) Type() string          { return TypeSetWon }
func (ResetGrid) Type() string       { return TypeResetGrid }
func (LoadState) Type() string       { return TypeLoadState }
func (u Unknown) Type() string       { return u.Tag }

func (SelectCell) isAction()      {}
func (KeyDown) isAction()         {}
func (Tick) isAction()            {}
func (ToggleAutocheck) isAction() {}
func (TogglePaused) isAction()    {}
func (SetWon) isAction()          {}
func (ResetGrid) isAction()       {}
func (LoadState) isAction()       {}
func (Unknown) isAction()         {}

// envelope is the JSON form of every action: {"type": "...", ...fields}.
type envelope struct {
	Type   string          `json:"type"`
	Row    *int            `json:"row,omitempty"`
	Col    *int            `json:"col,omitempty"`
	Key    string          `json:"key,omitempty"`
	To     *bool           `json:"to,omitempty"`
	Puzzle *PuzzleInput    `json:"puzzle,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

// DecodeAction parses the JSON form of an action. Unrecognised tags decode
// to Unknown rather than failing; only input that is not a JSON object, or
// whose fields have the wrong JSON type, is an error.
func DecodeAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	switch env.Type {
	case TypeSelectCell:
		a := SelectCell{}
		if env.Row != nil {
			a.Row = *env.Row
		}
		if env.Col != nil {
			a.Col = *env.Col
		}
		return a, nil
	case TypeKeyDown:
		return KeyDown{Key: env.Key}, nil
	case TypeTick:
		return Tick{}, nil
	case TypeToggleAutocheck:
		return ToggleAutocheck{}, nil
	case TypeTogglePaused:
		return TogglePaused{}, nil
	case TypeSetWon:
		return SetWon{To: env.To != nil && *env.To}, nil
	case TypeResetGrid:
		return ResetGrid{Puzzle: env.Puzzle}, nil
	case TypeLoadState:
		if len(env.State) == 0 {
			return Unknown{Tag: env.Type}, nil
		}
		var s State
		if err := json.Unmarshal(env.State, &s); err != nil {
			return nil, fmt.Errorf("decode loadState snapshot: %w", err)
		}
		return LoadState{State: s}, nil
	default:
		return Unknown{Tag: env.Type}, nil
	}
}

// EncodeAction returns the JSON form of a.
func EncodeAction(a Action) ([]byte, error) {
	env := envelope{Type: a.Type()}
	switch a := a.(type) {
	case SelectCell:
		env.Row, env.Col = &a.Row, &a.Col
	case KeyDown:
		env.Key = a.Key
	case SetWon:
		env.To = &a.To
	case ResetGrid:
		env.Puzzle = a.Puzzle
	case LoadState:
		raw, err := json.Marshal(a.State)
		if err != nil {
			return nil, fmt.Errorf("encode loadState snapshot: %w", err)
		}
		env.State = raw
	}
	return json.Marshal(env)
}
