package logger

import (
	"fmt"

	"github.com/straye-as/activity-reports/internal/config"
	"github.com/straye-as/activity-reports/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new structured logger
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" || appCfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// WithReport adds the report's quarter range to the logger
func WithReport(logger *zap.Logger, key domain.QuarterRange) *zap.Logger {
	return logger.With(
		zap.String("report_key", key.Key()),
		zap.String("period", key.String()),
	)
}

// WithArea adds the statistics area being computed
func WithArea(logger *zap.Logger, area domain.ReportArea) *zap.Logger {
	return logger.With(zap.String("area", string(area)))
}

// WithUser adds user context to logger
func WithUser(logger *zap.Logger, userID, displayName string) *zap.Logger {
	return logger.With(
		zap.String("user_id", userID),
		zap.String("user_name", displayName),
	)
}
