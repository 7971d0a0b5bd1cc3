package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/edgesync/internal/core/domain"
	"github.com/vietddude/edgesync/internal/infra/feed"
	redisclient "github.com/vietddude/edgesync/internal/infra/redis"
	"github.com/vietddude/edgesync/internal/infra/storage/postgres"
)

// Load reads configuration from a YAML file, falls back to the environment
// for anything the file leaves empty, applies defaults and validates.
// A missing file is not an error. Every returned error wraps domain.ErrConfig.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file: %w", domain.ErrConfig, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("%w: failed to read config file: %w", domain.ErrConfig, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setIfEmpty(&cfg.Database.URL, "DATABASE_URL")
	setIfEmpty(&cfg.Feed.APIKey, "RAPID_API_KEY")
	setIfEmpty(&cfg.Feed.APIHost, "RAPID_API_HOST")
	setIfEmpty(&cfg.Redis.URL, "REDIS_URL")
	setIfEmpty(&cfg.Logging.Level, "LOG_LEVEL")

	if cfg.Server.Port == 0 {
		if v := os.Getenv("PORT"); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: invalid PORT %q", domain.ErrConfig, v)
			}
			cfg.Server.Port = port
		}
	}
	return nil
}

func setIfEmpty(dst *string, env string) {
	if *dst == "" {
		*dst = os.Getenv(env)
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Feed.URL == "" {
		cfg.Feed.URL = feed.DefaultURL
	}
	if cfg.Feed.AdvantageType == "" {
		cfg.Feed.AdvantageType = feed.DefaultAdvantageType
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 30 * time.Second
	}
	if cfg.Feed.ConnectTimeout == 0 {
		cfg.Feed.ConnectTimeout = 10 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = postgres.DriverPgx
	}
	if cfg.Database.Timeout == 0 {
		cfg.Database.Timeout = 10 * time.Second
	}

	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = 60 * time.Second
	}
	if cfg.Poller.RetryBackoff == 0 {
		cfg.Poller.RetryBackoff = 30 * time.Second
	}
	if cfg.Poller.MaxRetries == 0 {
		cfg.Poller.MaxRetries = 3
	}
	if cfg.Poller.Backoff == "" {
		cfg.Poller.Backoff = BackoffConstant
	}
	if cfg.Poller.MaxBackoff == 0 {
		cfg.Poller.MaxBackoff = cfg.Poller.Interval
	}
	if cfg.Poller.Malformed == "" {
		cfg.Poller.Malformed = MalformedSkip
	}

	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = redisclient.DefaultStream
	}
	if cfg.Redis.MaxLen == 0 {
		cfg.Redis.MaxLen = redisclient.DefaultMaxLen
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks that the configuration is complete and consistent.
func (c *AppConfig) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Database.URL == "" {
		fail("database.url (DATABASE_URL) is required")
	} else if _, err := pgconn.ParseConfig(c.Database.URL); err != nil {
		fail("database.url is not a valid connection string: %v", err)
	}
	switch c.Database.Driver {
	case postgres.DriverPgx, postgres.DriverPQ:
	default:
		fail("database.driver %q is not supported", c.Database.Driver)
	}

	if c.Feed.APIKey == "" {
		fail("feed.api_key (RAPID_API_KEY) is required")
	}
	if c.Feed.APIHost == "" {
		fail("feed.api_host (RAPID_API_HOST) is required")
	}
	if u, err := url.Parse(c.Feed.URL); err != nil || u.Scheme != "https" || u.Host == "" {
		fail("feed.url %q must be an https URL", c.Feed.URL)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("server.port %d is out of range", c.Server.Port)
	}

	if c.Feed.Timeout < 0 || c.Feed.ConnectTimeout < 0 || c.Database.Timeout < 0 {
		fail("timeouts must be positive")
	}
	if c.Poller.Interval < 0 || c.Poller.RetryBackoff < 0 || c.Poller.MaxBackoff < 0 {
		fail("poller durations must be positive")
	}
	if c.Poller.MaxRetries < 0 {
		fail("poller.max_retries must be positive")
	}
	switch c.Poller.Backoff {
	case BackoffConstant, BackoffExponential:
	default:
		fail("poller.backoff %q is not supported", c.Poller.Backoff)
	}
	switch c.Poller.Malformed {
	case MalformedSkip, MalformedAbort:
	default:
		fail("poller.malformed %q is not supported", c.Poller.Malformed)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfig, errors.Join(errs...))
	}
	return nil
}
