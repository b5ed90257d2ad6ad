// Package app wires configuration, storage and services for the commands.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/straye-as/activity-reports/internal/config"
	"github.com/straye-as/activity-reports/internal/database"
	"github.com/straye-as/activity-reports/internal/distlock"
	"github.com/straye-as/activity-reports/internal/repository"
	"github.com/straye-as/activity-reports/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the shared dependencies of reportd and reportctl
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Reports *service.ReportService
	redis   *redis.Client
}

// New connects to the database and, when enabled, Redis, and builds the
// report services on top of them
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: log, DB: db}

	var lockClient redis.UniversalClient
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		lockClient = a.redis
		log.Info("Redis generation lock enabled", zap.String("addr", cfg.Redis.Addr))
	}

	sqlDB, err := db.DB()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	a.Reports = NewReportService(db, distlock.NewLocker(lockClient, sqlDB, cfg.Redis.LockTTLDuration()), log)
	return a, nil
}

// NewReportService builds the report coordinator and its aggregators over db
func NewReportService(db *gorm.DB, locker distlock.Locker, log *zap.Logger) *service.ReportService {
	orders := repository.NewOrderRepository(db)

	return service.NewReportService(
		repository.NewReportRepository(db),
		repository.NewReportResultRepository(db),
		repository.NewUserRepository(db),
		service.NewJobStatsService(repository.NewJobRepository(db), log),
		service.NewOrderStatsService(orders, log),
		service.NewUserStatsService(
			repository.NewCustomerRepository(db),
			repository.NewAccountManagerRepository(db),
			orders,
			log,
		),
		locker,
		log,
	)
}

// SQLDB returns the underlying connection pool, e.g. for migrations
func (a *App) SQLDB() (*sql.DB, error) {
	return a.DB.DB()
}

// Close releases the database and Redis connections
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("Error closing redis connection", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Logger.Warn("Error closing database connection", zap.Error(err))
		}
	}
}
