package session

import (
	"fmt"

	"github.com/bodul/campus-crossword/internal/crossword"
)

// Phase is the session-level state layered over the reducer's fields.
type Phase int

const (
	// PhaseLoading lasts from Open until the snapshot slot has been read.
	PhaseLoading Phase = iota
	// PhaseRestoring is entered when a usable snapshot was found.
	PhaseRestoring
	PhasePlaying
	PhasePaused
	// PhaseWon ends the session until the grid is reset.
	PhaseWon
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseRestoring:
		return "restoring"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseWon:
		return "won"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON views.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for q := PhaseLoading; q <= PhaseWon; q++ {
		if q.String() == string(text) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// phaseOf maps a loaded state onto its active phase.
func phaseOf(s crossword.State) Phase {
	switch {
	case s.Won:
		return PhaseWon
	case s.Paused:
		return PhasePaused
	default:
		return PhasePlaying
	}
}
