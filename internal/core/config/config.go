package config

import (
	"time"

	"github.com/vietddude/edgesync/internal/infra/feed"
	redisclient "github.com/vietddude/edgesync/internal/infra/redis"
	"github.com/vietddude/edgesync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Feed     feed.Config        `yaml:"feed"`
	Database postgres.Config    `yaml:"database"`
	Poller   PollerConfig       `yaml:"poller"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// PollerConfig controls the cadence and retry behavior of the poll loop.
type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`      // cycle cadence
	RetryBackoff time.Duration `yaml:"retry_backoff"` // wait between in-cycle retries
	MaxRetries   int           `yaml:"max_retries"`   // attempts before deferring to next cycle
	Backoff      string        `yaml:"backoff"`       // constant, exponential
	MaxBackoff   time.Duration `yaml:"max_backoff"`   // cap for exponential
	Malformed    string        `yaml:"malformed"`     // skip, abort
}

const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"

	MalformedSkip  = "skip"
	MalformedAbort = "abort"
)
