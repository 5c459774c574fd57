package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bodul/campus-crossword/internal/content"
	"github.com/bodul/campus-crossword/internal/crossword"
	snapstore "github.com/bodul/campus-crossword/internal/storage/badger"
)

var puzzlesCmd = &cobra.Command{
	Use:   "puzzles",
	Short: "Manage the puzzle archive",
}

var puzzlesAddCmd = &cobra.Command{
	Use:   "add FILE...",
	Short: "Add puzzles from JSON files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		puzzles, err := content.Open(cmd.Context(), cfg.Storage.DatabasePath)
		if err != nil {
			return err
		}
		defer puzzles.Close()

		for _, path := range args {
			in, err := readPuzzleFile(path)
			if err != nil {
				return err
			}
			id, err := puzzles.Save(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: puzzle %d\n", path, id)
		}
		return nil
	},
}

var puzzlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored puzzles, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		puzzles, err := content.Open(cmd.Context(), cfg.Storage.DatabasePath)
		if err != nil {
			return err
		}
		defer puzzles.Close()

		list, err := puzzles.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tAUTHOR")
		for _, p := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Date, p.Author)
		}
		return tw.Flush()
	},
}

func readPuzzleFile(path string) (crossword.PuzzleInput, error) {
	var in crossword.PuzzleInput
	data, err := os.ReadFile(path)
	if err != nil {
		return in, err
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(in.Clues.Across)+len(in.Clues.Down) == 0 {
		return in, fmt.Errorf("%s: no clues", path)
	}
	return in, nil
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List saved session snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openSnapshotDB()
		if err != nil {
			return err
		}
		defer store.Close()

		keys, err := store.Keys(cmd.Context())
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var snapshotsRmCmd = &cobra.Command{
	Use:   "rm KEY...",
	Short: "Delete saved session snapshots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSnapshotDB()
		if err != nil {
			return err
		}
		defer store.Close()

		for _, k := range args {
			if err := store.Delete(cmd.Context(), k); err != nil {
				return err
			}
		}
		return nil
	},
}

func openSnapshotDB() (*snapstore.Store, error) {
	if cfg.Storage.SnapshotPath == "" {
		return nil, errors.New("storage.snapshot_path is empty: snapshots are kept in memory")
	}
	bc := snapstore.DefaultConfig(cfg.Storage.SnapshotPath)
	bc.Logger = logger
	return snapstore.Open(bc)
}

func init() {
	puzzlesCmd.AddCommand(puzzlesAddCmd, puzzlesListCmd)
	snapshotsCmd.AddCommand(snapshotsRmCmd)
}
