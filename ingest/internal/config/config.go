package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telhawk-systems/linehawk/common/database"
	natsclient "github.com/telhawk-systems/linehawk/common/messaging/nats"
	"github.com/telhawk-systems/linehawk/common/tracing"
	"github.com/telhawk-systems/linehawk/ingest/internal/mqtt"
	"github.com/telhawk-systems/linehawk/ingest/internal/validator"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	DLQ       DLQConfig       `mapstructure:"dlq"`
	MQTT      mqtt.Config     `mapstructure:"mqtt"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// Store backends.
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
	DatabaseMemory   = "memory"
)

type DatabaseConfig struct {
	Type     string                  `mapstructure:"type"`
	Postgres database.PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig            `mapstructure:"sqlite"`
	// Migrations is a golang-migrate source URL for the postgres schema.
	Migrations string `mapstructure:"migrations"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type IngestionConfig struct {
	MaxDuration     time.Duration `mapstructure:"max_duration"`
	FutureTolerance time.Duration `mapstructure:"future_tolerance"`
	Workers         int           `mapstructure:"workers"`
	// MaxBatchSize of 0 means unlimited.
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// Policy returns the admission limits.
func (c IngestionConfig) Policy() validator.Policy {
	return validator.Policy{
		MaxDuration:     c.MaxDuration,
		FutureTolerance: c.FutureTolerance,
	}
}

type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	InstanceID    string        `mapstructure:"instance_id"`
}

type NATSConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Client  natsclient.Config `mapstructure:",squash"`
}

// DLQ backends.
const (
	DLQBackendFile      = "file"
	DLQBackendJetStream = "jetstream"
)

type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case DatabasePostgres, DatabaseSQLite, DatabaseMemory:
	default:
		return fmt.Errorf("unknown database type %q (supported: postgres, sqlite, memory)", c.Database.Type)
	}
	if c.DLQ.Enabled {
		switch c.DLQ.Backend {
		case DLQBackendFile:
		case DLQBackendJetStream:
			if !c.NATS.Enabled {
				return fmt.Errorf("dlq backend %q requires nats.enabled", c.DLQ.Backend)
			}
		default:
			return fmt.Errorf("unknown DLQ backend %q (supported: file, jetstream)", c.DLQ.Backend)
		}
	}
	if c.Ingestion.MaxDuration <= 0 {
		return fmt.Errorf("ingestion.max_duration must be positive")
	}
	if c.Ingestion.FutureTolerance < 0 {
		return fmt.Errorf("ingestion.future_tolerance must not be negative")
	}
	if c.Ingestion.MaxBatchSize < 0 {
		return fmt.Errorf("ingestion.max_batch_size must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 16<<20)
	v.SetDefault("database.type", DatabasePostgres)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "linehawk")
	v.SetDefault("database.postgres.password", "linehawk")
	v.SetDefault("database.postgres.database", "linehawk")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_conns", 25)
	v.SetDefault("database.postgres.min_conns", 5)
	v.SetDefault("database.sqlite.path", "linehawk.db")
	v.SetDefault("database.migrations", "file://migrations")
	v.SetDefault("ingestion.max_duration", validator.DefaultMaxDuration.String())
	v.SetDefault("ingestion.future_tolerance", validator.DefaultFutureTolerance.String())
	v.SetDefault("ingestion.workers", 8)
	v.SetDefault("ingestion.max_batch_size", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.flush_interval", "30s")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "linehawk-ingest")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")
	v.SetDefault("dlq.enabled", true)
	v.SetDefault("dlq.backend", DLQBackendFile)
	v.SetDefault("dlq.path", "/var/lib/linehawk/dlq")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", mqtt.DefaultTopic)
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "linehawk-ingest")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/linehawk/ingest")
	}

	// Environment variables override, e.g. INGEST_DATABASE_TYPE
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
