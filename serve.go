package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bodul/campus-crossword/internal/content"
	"github.com/bodul/campus-crossword/internal/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the puzzle and session HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	puzzles, err := content.Open(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer puzzles.Close()

	snapshots, closeSnapshots, err := openSnapshots()
	if err != nil {
		return err
	}
	defer closeSnapshots()

	var gemini *GeminiClient
	if cfg.Gemini.ProjectID != "" {
		gemini, err = NewGeminiClient(ctx, cfg.Gemini)
		if err != nil {
			return err
		}
		defer gemini.Close()
		logger.Info("gemini client ready", zap.String("project", cfg.Gemini.ProjectID), zap.String("model", cfg.Gemini.Model))
	} else {
		logger.Info("GCP_PROJECT_ID not set, photo import disabled")
	}

	sessions := NewStore(puzzles, snapshots, session.Config{
		Logger:       logger,
		TickInterval: cfg.Session.TickInterval,
		SaveTimeout:  cfg.Session.SaveTimeout,
	})
	srv := NewServer(cfg.Server, sessions, gemini, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", zap.String("addr", cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if idle := cfg.Session.IdleTimeout; idle > 0 {
		g.Go(func() error {
			t := time.NewTicker(max(idle/2, time.Second))
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					srv.reapIdle(gctx, idle)
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(httpSrv.Shutdown(shutdownCtx), sessions.Close(shutdownCtx))
	})
	return g.Wait()
}
