package main

import (
	"context"
	"fmt"
	"os"

	"github.com/straye-as/activity-reports/internal/app"
	"github.com/straye-as/activity-reports/internal/config"
	"github.com/straye-as/activity-reports/internal/logger"
)

func main() {
	root, closeService := newRootCmd(openService)
	err := root.ExecuteContext(context.Background())
	closeService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openService loads configuration with secrets and connects to the database
func openService(ctx context.Context) (reportService, func(), error) {
	basicCfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	return a.Reports, func() {
		a.Close()
		_ = log.Sync()
	}, nil
}
