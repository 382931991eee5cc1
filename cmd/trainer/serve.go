package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/training-engine/internal/api"
	"github.com/terra-clan/training-engine/internal/catalog"
	"github.com/terra-clan/training-engine/internal/config"
	"github.com/terra-clan/training-engine/internal/engine"
	"github.com/terra-clan/training-engine/internal/storage"
	"github.com/terra-clan/training-engine/internal/ticker"
	"github.com/terra-clan/training-engine/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and its HTTP API",
	Long: `Run the engine and its HTTP API.

Environment:
  SERVER_HOST, SERVER_PORT        listener address (0.0.0.0:8080)
  API_KEYS, API_READONLY_KEYS     comma-separated keys, auth is off when both are empty
  STORAGE_DRIVER                  memory, sqlite, postgres or redis (sqlite)
  STORAGE_PATH                    sqlite file (./data/trainer.db)
  DATABASE_DSN, STORAGE_TABLE     postgres connection and table
  REDIS_ADDRESS, REDIS_PASSWORD   redis connection
  TASKS_DIR                       load tasks from a directory instead of the built-in set
  TICK_INTERVAL                   session timer resolution (1s)
  CHECKPOINT_INTERVAL             periodic state flush (1m)
  TRAINER_TIMEZONE                zone calendar days are counted in (Local)
  PLAYER_ID                       namespace for persisted state (default)
  LOG_LEVEL                       debug, info, warn or error (info)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting trainer",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"player", cfg.Engine.PlayerID,
	)

	cat, err := loadCatalog(cfg.Catalog.Dir)
	if err != nil {
		return err
	}
	slog.Info("task catalog loaded", "tasks", cat.Len())

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	store, err := storage.Open(initCtx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("state store close error", "error", err)
		}
	}()

	loc, err := cfg.Engine.Location()
	if err != nil {
		return err
	}

	eng := engine.New(cat, store,
		engine.WithLocation(loc),
		engine.WithPlayerID(cfg.Engine.PlayerID),
	)
	if err := eng.Load(initCtx); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tk := ticker.New(eng, cfg.Engine.TickInterval, cfg.Engine.CheckpointInterval)
	tk.Start(ctx)

	server := api.NewServer(cfg.Server, eng)
	httpServer := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		// websocket streams outlive any write deadline, handlers bound
		// themselves with middleware.Timeout
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serveErr:
		slog.Error("HTTP server error", "error", runErr)
	}

	slog.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	cancel()
	<-tk.Done()

	if err := eng.Flush(shutdownCtx); err != nil {
		slog.Error("final state flush failed", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("HTTP server failed: %w", runErr)
	}
	slog.Info("trainer stopped")
	return nil
}

func loadCatalog(dir string) (*catalog.Loader, error) {
	cat := catalog.NewLoader()
	if dir != "" {
		if err := cat.LoadFromDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load tasks from %s: %w", dir, err)
		}
		return cat, nil
	}
	if err := cat.LoadFS(tasks.FS); err != nil {
		return nil, fmt.Errorf("failed to load built-in tasks: %w", err)
	}
	return cat, nil
}
