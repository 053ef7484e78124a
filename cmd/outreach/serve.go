package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalcrest/outreach/internal/api"
	"github.com/signalcrest/outreach/internal/config"
	"github.com/signalcrest/outreach/internal/db"
	"github.com/signalcrest/outreach/internal/drip"
	"github.com/signalcrest/outreach/internal/mailer"
	"github.com/signalcrest/outreach/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and scheduler",
	RunE:  runServe,
}

var configFile string

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/outreach/config.yaml", "Path to configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	transport := mailer.New(cfg.Mailer, logger)
	m := metrics.New()
	engine := drip.New(database.DB, transport, logger, drip.Options{
		FromEmail: cfg.Mailer.FromEmail,
		FromName:  cfg.Mailer.FromName,
		Metrics:   m,
	})

	srv := api.NewServer(database.DB, engine, m, logger, api.Options{
		ListenAddr: cfg.Server.ListenAddr,
		APIKey:     cfg.Server.APIKey,
		BatchSize:  cfg.Scheduler.BatchSize,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Internal tick driver. External callers can still POST
	// /api/v1/marketing/tick; the claim step keeps the two from colliding.
	go func() {
		ticker := time.NewTicker(cfg.Scheduler.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := engine.Tick(ctx, cfg.Scheduler.BatchSize); err != nil {
					logger.Error("scheduled tick failed", "error", err)
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
