package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/signalcrest/outreach/internal/config"
	"github.com/signalcrest/outreach/internal/db"
	"github.com/signalcrest/outreach/internal/drip"
	"github.com/signalcrest/outreach/internal/mailer"
)

var tickBatch int

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler pass and print the counters",
	Long:  `Tick advances due enrollments one step each and exits. Suitable for cron-driven deployments that do not run the serve command.`,
	RunE:  runTick,
}

func init() {
	tickCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/outreach/config.yaml", "Path to configuration file")
	tickCmd.Flags().IntVarP(&tickBatch, "batch", "b", 0, "Maximum enrollments to process (default from config)")
}

func runTick(cmd *cobra.Command, args []string) error {
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
	engine := drip.New(database.DB, transport, logger, drip.Options{
		FromEmail: cfg.Mailer.FromEmail,
		FromName:  cfg.Mailer.FromName,
	})

	batch := tickBatch
	if batch <= 0 {
		batch = cfg.Scheduler.BatchSize
	}

	result, err := engine.Tick(context.Background(), batch)
	if err != nil {
		return err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
