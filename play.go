package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bodul/campus-crossword/internal/content"
	"github.com/bodul/campus-crossword/internal/session"
	"github.com/bodul/campus-crossword/internal/tui"
)

var playPuzzleID int64

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a puzzle in the terminal",
	Long: `Play the latest puzzle, or the one given with --puzzle, in the terminal.

Keys: letters type, backspace/delete erase, arrows move, tab switches
direction, ctrl+p pauses, ctrl+k toggles autocheck, ctrl+r resets the grid,
esc quits. Progress is saved and resumed on the next run.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().Int64Var(&playPuzzleID, "puzzle", 0, "puzzle id (default latest)")
}

func runPlay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	puzzles, err := content.Open(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer puzzles.Close()

	var p *content.Puzzle
	if playPuzzleID == 0 {
		p, err = puzzles.Latest(ctx)
	} else {
		p, err = puzzles.Get(ctx, playPuzzleID)
	}
	if err != nil {
		return err
	}

	snapshots, closeSnapshots, err := openSnapshots()
	if err != nil {
		return err
	}
	defer closeSnapshots()

	title := fmt.Sprintf("%s · %s", p.Input.Date, p.Input.Author)
	return tui.Run(ctx, p.Input, title, session.Config{
		Key:          terminalSessionKey(p.ID),
		Store:        snapshots,
		Logger:       logger,
		TickInterval: cfg.Session.TickInterval,
		SaveTimeout:  cfg.Session.SaveTimeout,
	}, tea.WithAltScreen())
}

// terminalSessionKey is the snapshot slot of the terminal player for a
// puzzle. HTTP sessions use UUIDs, so the two never collide.
func terminalSessionKey(puzzleID int64) string {
	return fmt.Sprintf("tui/%d", puzzleID)
}
