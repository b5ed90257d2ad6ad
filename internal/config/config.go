package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/activity-reports/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Report    ReportConfig
}

type AppConfig struct {
	Name        string
	Environment string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	// AutoMigrate applies the embedded migrations when the daemon starts
	AutoMigrate bool
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

// RedisConfig configures the optional generation lock.
// With Enabled false generation runs unlocked.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	LockTTL  int // seconds
}

// SchedulerConfig controls the periodic regeneration of the current quarter
type SchedulerConfig struct {
	Enabled bool
	// Cron is a standard five-field cron expression
	Cron string
	// Timeout bounds a single scheduled run (seconds)
	Timeout int
}

// ReportConfig holds report generation settings
type ReportConfig struct {
	// AuthorID is recorded as creator of reports generated without a user,
	// e.g. by the scheduler. Empty leaves the creator unset.
	AuthorID string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// LockTTLDuration returns the lock TTL as duration
func (r *RedisConfig) LockTTLDuration() time.Duration {
	return time.Duration(r.LockTTL) * time.Second
}

// TimeoutDuration returns the scheduled run timeout as duration
func (s *SchedulerConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if cfg.Redis.Password == "" {
		cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
//
// Key Vault is used when BOTH conditions are met:
// 1. USE_AZURE_KEY_VAULT environment variable is set to "true"
// 2. Environment is "staging" or "production"
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	providerCfg := secretsProviderConfig(cfg)
	if providerCfg.Source != secrets.SourceEnvironment && cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	logger.Info("Secrets provider enabled",
		zap.String("environment", cfg.App.Environment),
		zap.String("source", string(providerCfg.Source)),
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	provider, err := secrets.NewProvider(providerCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider (USE_AZURE_KEY_VAULT=true requires valid vault): %w", err)
	}

	if err := applySecrets(ctx, cfg, provider); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded successfully", zap.String("source", string(provider.Source())))
	return cfg, nil
}

// secretsProviderConfig maps SECRETS_SOURCE onto the provider; an empty source means auto.
func secretsProviderConfig(cfg *Config) *secrets.ProviderConfig {
	source := secrets.SecretSource(strings.ToLower(cfg.Secrets.Source))
	if source == "" {
		source = secrets.SourceAuto
	}
	return &secrets.ProviderConfig{
		Source:       source,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}
}

// SecretSource resolves a secret by vault name with an environment fallback
type SecretSource interface {
	GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error)
}

// applySecrets overrides credentials with values from the secret source.
// Port and database name stay environment-specific.
func applySecrets(ctx context.Context, cfg *Config, src SecretSource) error {
	if host, err := src.GetSecretOrEnv(ctx, "POSTGRES-MAIN-HOST", "DATABASE_HOST"); err == nil && host != "" {
		cfg.Database.Host = host
	}
	if defaultDB := os.Getenv("DEFAULT_DATABASE"); defaultDB != "" {
		cfg.Database.Name = defaultDB
	}
	if user, err := src.GetSecretOrEnv(ctx, "POSTGRES-MAIN-USER", "DATABASE_USER"); err == nil && user != "" {
		cfg.Database.User = user
	}
	password, err := src.GetSecretOrEnv(ctx, "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD")
	if err != nil {
		return fmt.Errorf("failed to load database password: %w", err)
	}
	if password != "" {
		cfg.Database.Password = password
	}
	// Azure PostgreSQL requires "require"
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	if cfg.Redis.Enabled {
		if redisPassword, err := src.GetSecretOrEnv(ctx, "REDIS-PASSWORD", "REDIS_PASSWORD"); err == nil && redisPassword != "" {
			cfg.Redis.Password = redisPassword
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Straye Activity Reports")
	v.SetDefault("app.environment", "development")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "reports")
	v.SetDefault("database.user", "reports_user")
	v.SetDefault("database.password", "reports_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.autoMigrate", false)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300) // 5 minutes

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", 120)

	// Nightly at 02:00
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron", "0 2 * * *")
	v.SetDefault("scheduler.timeout", 600)

	v.SetDefault("report.authorID", "")
}
