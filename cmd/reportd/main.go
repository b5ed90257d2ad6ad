package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/straye-as/activity-reports/internal/app"
	"github.com/straye-as/activity-reports/internal/config"
	"github.com/straye-as/activity-reports/internal/jobs"
	"github.com/straye-as/activity-reports/internal/logger"
	"github.com/straye-as/activity-reports/migrations"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting report scheduler",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
	)

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Database.AutoMigrate {
		sqlDB, err := a.SQLDB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		if err := migrations.Up(sqlDB); err != nil {
			return err
		}
		log.Info("Database migrations applied")
	}

	if !cfg.Scheduler.Enabled {
		log.Info("Report scheduler disabled, nothing to do")
		return nil
	}

	scheduler := jobs.NewScheduler(log)
	if err := jobs.RegisterReportJob(
		scheduler,
		a.Reports,
		cfg.Report.AuthorID,
		log,
		cfg.Scheduler.Cron,
		cfg.Scheduler.TimeoutDuration(),
	); err != nil {
		return fmt.Errorf("failed to register report job: %w", err)
	}
	scheduler.Start()
	log.Info("Scheduler started with report job",
		zap.String("cron_expr", cfg.Scheduler.Cron),
		zap.Duration("timeout", cfg.Scheduler.TimeoutDuration()),
	)

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.Info("Shutdown signal received", zap.String("signal", sig.String()))

	// Let a running generation finish before closing connections
	<-scheduler.Stop().Done()
	log.Info("Scheduler stopped")

	return nil
}
