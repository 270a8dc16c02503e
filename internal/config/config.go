package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Webhook   WebhookConfig   `mapstructure:"webhook" validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// SchedulerConfig controls the dispatcher's concurrency.
type SchedulerConfig struct {
	// WorkerCount bounds how many due tasks execute concurrently. Bursty
	// due-time clustering queues up behind the workers instead of
	// spawning unbounded goroutines.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
}

// WebhookConfig controls webhook delivery behavior.
type WebhookConfig struct {
	// RequestTimeout is the transport-level timeout for a single POST attempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`

	// MaxAttempts is how many times a delivery is attempted before the
	// task is marked failed. Backoff doubles between attempts.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`
}
