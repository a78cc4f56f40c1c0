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

	"github.com/hearthside/starboard/internal/api"
	"github.com/hearthside/starboard/internal/config"
	"github.com/hearthside/starboard/internal/family"
	"github.com/hearthside/starboard/internal/notify"
	"github.com/hearthside/starboard/internal/rewards"
	"github.com/hearthside/starboard/internal/store"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "starboard",
	Short: "Starboard - household chore rewards service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(newLogHandler(cfg.Log))
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "level", cfg.Log.Level)

	fileStore := store.NewFileStore(cfg.State.Path)
	slog.Info("state store initialized", "path", cfg.State.Path)

	broadcaster := notify.NewBroadcaster(cfg.Notify.BufferSize)
	service := rewards.NewService(fileStore, broadcaster)

	// The family config is display data for dashboards; a missing file
	// just means the /api/config endpoint serves an empty roster.
	fam, err := family.Load(cfg.Family.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("family config not found, serving empty roster",
				"path", cfg.Family.ConfigPath)
		} else {
			return fmt.Errorf("loading family config: %w", err)
		}
	} else {
		slog.Info("family config loaded",
			"path", cfg.Family.ConfigPath, "members", len(fam.Members))
	}

	handler := api.NewHandler(service, broadcaster, fam, Version,
		time.Duration(cfg.Notify.KeepAliveInterval))
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigin)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout),
		// No WriteTimeout: the notification stream stays open for hours.
	}

	go func() {
		slog.Info("server starting", "address", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Drain in-flight requests, hang up the notification streams, then
	// close the store.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	broadcaster.Close()
	if err := fileStore.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogHandler(cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
