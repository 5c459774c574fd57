// Command crossword serves and plays the campus newspaper crossword.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bodul/campus-crossword/internal/config"
	"github.com/bodul/campus-crossword/internal/session"
)

var (
	configPath string
	verbose    bool
	logFile    string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crossword",
	Short: "Campus newspaper crossword server and terminal player",
	Long: `crossword serves the daily puzzle over HTTP, with photo import through
Gemini, and plays it in the terminal. Progress is saved after every move and
resumed when the same session is opened again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		// The terminal player owns the screen; it only logs to a file.
		if cmd.Name() == "play" && logFile == "" {
			logger = zap.NewNop()
			return nil
		}

		zc := zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		if logFile != "" {
			zc.OutputPaths = []string{logFile}
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(serveCmd, playCmd, puzzlesCmd, snapshotsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// openSnapshots opens the configured snapshot store. An empty path keeps
// snapshots in memory for the life of the process.
func openSnapshots() (session.Store, func() error, error) {
	if cfg.Storage.SnapshotPath == "" {
		logger.Info("snapshot path not set, snapshots kept in memory")
		return session.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := openSnapshotDB()
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
