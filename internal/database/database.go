package database

import (
	"fmt"
	"time"

	"github.com/straye-as/activity-reports/internal/config"
	"github.com/straye-as/activity-reports/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a gorm connection with the settings shared by every dialect:
// silent SQL logging and UTC timestamps.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// NewDatabase creates a new PostgreSQL connection
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(postgres.Open(cfg.ConnectionString()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return db, nil
}

// Models lists every table owned or read by the report engine, parents first
var Models = []interface{}{
	&domain.User{},
	&domain.Job{},
	&domain.ServiceProvider{},
	&domain.Service{},
	&domain.AccountManager{},
	&domain.Customer{},
	&domain.Order{},
	&domain.Report{},
	&domain.JobReportResult{},
	&domain.OrderReportResult{},
	&domain.UserReportResult{},
}

// AutoMigrate creates the schema from the models (development and tests).
// Production uses the SQL migrations applied by cmd/migrate.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}
