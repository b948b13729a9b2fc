package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. SHIFTBOOK_DATABASE_DSN.
const EnvPrefix = "SHIFTBOOK_"

// Config represents the overall application configuration.
type Config struct {
	LogLevel       string               `yaml:"log_level" env:"LOG_LEVEL"`
	Server         ServerConfig         `yaml:"server" envPrefix:"SERVER_"`
	Database       DatabaseConfig       `yaml:"database" envPrefix:"DATABASE_"`
	Booking        BookingConfig        `yaml:"booking" envPrefix:"BOOKING_"`
	DuplicateCheck DuplicateCheckConfig `yaml:"duplicate_check" envPrefix:"DUPLICATE_CHECK_"`
	Dispatcher     DispatcherConfig     `yaml:"dispatcher" envPrefix:"DISPATCHER_"`
	Push           PushConfig           `yaml:"push" envPrefix:"PUSH_"`
	WorkerPool     WorkerPoolConfig     `yaml:"worker_pool" envPrefix:"WORKER_POOL_"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                   int     `yaml:"port" env:"PORT"`
	RateLimitPerSec        float64 `yaml:"rate_limit_per_sec" env:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst         int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	CacheTTLSeconds        int     `yaml:"cache_ttl_seconds" env:"CACHE_TTL_SECONDS"`
	ShutdownTimeoutSeconds int     `yaml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT_SECONDS"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" env:"DRIVER"` // postgres or sqlite
	DSN                    string `yaml:"dsn" env:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" env:"CONN_MAX_LIFETIME_MINUTES"`
	LogLevel               string `yaml:"log_level" env:"LOG_LEVEL"`
}

// BookingConfig describes the external booking service.
type BookingConfig struct {
	BookURL        string            `yaml:"book_url" env:"BOOK_URL"`
	ShiftsURL      string            `yaml:"shifts_url" env:"SHIFTS_URL"`
	Headers        map[string]string `yaml:"headers"`
	HTTPProxy      string            `yaml:"http_proxy" env:"HTTP_PROXY"`
	TimeoutSeconds int               `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	Timeout        time.Duration     `yaml:"-"`
	MaxRetries     int               `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryDelayMS   int               `yaml:"retry_delay_ms" env:"RETRY_DELAY_MS"`
	RetryDelay     time.Duration     `yaml:"-"`
}

// DuplicateCheckConfig controls what happens when the existing-shifts list cannot be read.
type DuplicateCheckConfig struct {
	// FailClosed marks an item failed when the list cannot be read instead
	// of attempting the booking anyway.
	FailClosed bool `yaml:"fail_closed" env:"FAIL_CLOSED"`
}

// DispatcherConfig holds the batch processing configuration.
type DispatcherConfig struct {
	Concurrency            int           `yaml:"concurrency" env:"CONCURRENCY"`
	Workers                int           `yaml:"workers" env:"WORKERS"`
	QueueSize              int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	MinBatchSize           int           `yaml:"min_batch_size" env:"MIN_BATCH_SIZE"`
	RecoverIntervalSeconds int           `yaml:"recover_interval_seconds" env:"RECOVER_INTERVAL_SECONDS"`
	RecoverInterval        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject" env:"SUBJECT"`
	TTL        int    `yaml:"ttl" env:"TTL"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size" env:"SIZE"`
}

// Load reads the configuration from the given path and applies environment overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in every unset value. Load calls it; tests building a
// Config by hand can call it too.
func (cfg *Config) ApplyDefaults() {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Booking.BookURL == "" {
		cfg.Booking.BookURL = "http://localhost:8181/shift"
	}
	if cfg.Booking.ShiftsURL == "" {
		cfg.Booking.ShiftsURL = "http://localhost:8181/shifts"
	}
	if cfg.Booking.TimeoutSeconds <= 0 {
		cfg.Booking.TimeoutSeconds = 30
	}
	cfg.Booking.Timeout = time.Duration(cfg.Booking.TimeoutSeconds) * time.Second
	if cfg.Booking.MaxRetries <= 0 {
		cfg.Booking.MaxRetries = 6
	}
	if cfg.Booking.RetryDelayMS <= 0 {
		cfg.Booking.RetryDelayMS = 500
	}
	cfg.Booking.RetryDelay = time.Duration(cfg.Booking.RetryDelayMS) * time.Millisecond

	if cfg.Dispatcher.Concurrency <= 0 {
		cfg.Dispatcher.Concurrency = 5
	}
	if cfg.Dispatcher.Workers <= 0 {
		cfg.Dispatcher.Workers = 2
	}
	if cfg.Dispatcher.QueueSize <= 0 {
		cfg.Dispatcher.QueueSize = 100
	}
	if cfg.Dispatcher.MinBatchSize <= 0 {
		cfg.Dispatcher.MinBatchSize = 10
	}
	if cfg.Dispatcher.RecoverIntervalSeconds <= 0 {
		cfg.Dispatcher.RecoverIntervalSeconds = 60
	}
	cfg.Dispatcher.RecoverInterval = time.Duration(cfg.Dispatcher.RecoverIntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
