package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yungbote/neurobridge-delivery/internal/clients/openai"
	"github.com/yungbote/neurobridge-delivery/internal/data/db"
	"github.com/yungbote/neurobridge-delivery/internal/observability"
	"github.com/yungbote/neurobridge-delivery/internal/platform/learnerlock"
	"github.com/yungbote/neurobridge-delivery/internal/temporalx"
)

const ServiceName = "neurobridge-delivery"

type Config struct {
	LogMode     string   `env:"LOG_MODE"     envDefault:"development"`
	HTTPAddr    string   `env:"HTTP_ADDR"    envDefault:":8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	Version     string   `env:"SERVICE_VERSION"`
	Environment string   `env:"ENVIRONMENT" envDefault:"development"`

	DatabaseDriver   string `env:"DATABASE_DRIVER"   envDefault:"postgres"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresName     string `env:"POSTGRES_NAME"     envDefault:"neurobridge_delivery"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE"  envDefault:"disable"`
	SQLitePath       string `env:"SQLITE_PATH"       envDefault:"delivery.db"`
	AutoMigrate      bool   `env:"AUTO_MIGRATE"      envDefault:"true"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"`
	LockTTL       time.Duration `env:"LEARNER_LOCK_TTL" envDefault:"30s"`

	SweepInterval time.Duration `env:"RETENTION_SWEEP_INTERVAL" envDefault:"5m"`
	TuningFile    string        `env:"DELIVERY_TUNING_FILE"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	OtelEnabled     bool    `env:"OTEL_ENABLED"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`

	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAIModel       string        `env:"OPENAI_MODEL"`
	OpenAITimeout     time.Duration `env:"OPENAI_TIMEOUT"     envDefault:"30s"`
	OpenAIMaxRetries  int           `env:"OPENAI_MAX_RETRIES" envDefault:"1"`
	OpenAITemperature float64       `env:"OPENAI_TEMPERATURE" envDefault:"0"`

	TemporalAddress       string        `env:"TEMPORAL_ADDRESS"`
	TemporalNamespace     string        `env:"TEMPORAL_NAMESPACE"`
	TemporalTaskQueue     string        `env:"TEMPORAL_TASK_QUEUE"`
	TemporalCertPath      string        `env:"TEMPORAL_CLIENT_CERT_PATH"`
	TemporalKeyPath       string        `env:"TEMPORAL_CLIENT_KEY_PATH"`
	TemporalCAPath        string        `env:"TEMPORAL_CLIENT_CA_PATH"`
	TemporalAutoNamespace bool          `env:"TEMPORAL_AUTO_REGISTER_NAMESPACE"`
	TemporalRetention     time.Duration `env:"TEMPORAL_NAMESPACE_RETENTION"`
	TemporalDialTimeout   time.Duration `env:"TEMPORAL_DIAL_TIMEOUT"`
	TemporalDialMaxWait   time.Duration `env:"TEMPORAL_DIAL_MAX_WAIT"`
	TemporalSweepCron     string        `env:"TEMPORAL_SWEEP_CRON" envDefault:"*/5 * * * *"`
	TemporalConcurrency   int           `env:"TEMPORAL_CONCURRENCY"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("RETENTION_SWEEP_INTERVAL must be positive")
	}
	if cfg.LockTTL <= 0 {
		return Config{}, fmt.Errorf("LEARNER_LOCK_TTL must be positive")
	}
	return cfg, nil
}

func (c Config) Database() db.Config {
	return db.Config{
		Driver:           c.DatabaseDriver,
		PostgresHost:     c.PostgresHost,
		PostgresPort:     c.PostgresPort,
		PostgresUser:     c.PostgresUser,
		PostgresPassword: c.PostgresPassword,
		PostgresName:     c.PostgresName,
		PostgresSSLMode:  c.PostgresSSLMode,
		SQLitePath:       c.SQLitePath,
	}
}

func (c Config) OpenAI() openai.Config {
	return openai.Config{
		APIKey:      c.OpenAIAPIKey,
		BaseURL:     c.OpenAIBaseURL,
		Model:       c.OpenAIModel,
		Timeout:     c.OpenAITimeout,
		MaxRetries:  c.OpenAIMaxRetries,
		Temperature: c.OpenAITemperature,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: ServiceName,
		Environment: c.Environment,
		Version:     c.Version,
		Endpoint:    c.OtelEndpoint,
		Headers:     c.OtelHeaders,
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}

func (c Config) Lock() learnerlock.RedisConfig {
	return learnerlock.RedisConfig{TTL: c.LockTTL}
}

func (c Config) Temporal() temporalx.Config {
	return temporalx.Config{
		Address:               c.TemporalAddress,
		Namespace:             c.TemporalNamespace,
		TaskQueue:             c.TemporalTaskQueue,
		ClientCertPath:        c.TemporalCertPath,
		ClientKeyPath:         c.TemporalKeyPath,
		ClientCAPath:          c.TemporalCAPath,
		AutoRegisterNamespace: c.TemporalAutoNamespace,
		NamespaceRetention:    c.TemporalRetention,
		DialTimeout:           c.TemporalDialTimeout,
		DialMaxWait:           c.TemporalDialMaxWait,
		SweepCron:             c.TemporalSweepCron,
		Concurrency:           c.TemporalConcurrency,
	}
}

// UseRedisLock reports whether learner locks span processes.
func (c Config) UseRedisLock() bool { return strings.TrimSpace(c.RedisAddr) != "" }
