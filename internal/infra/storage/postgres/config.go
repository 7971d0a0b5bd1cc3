package postgres

import "time"

// Config holds PostgreSQL connection configuration.
type Config struct {
	Driver   string        `yaml:"driver"` // pgx (default) or postgres (lib/pq)
	URL      string        `yaml:"url"`
	MaxConns int           `yaml:"max_conns"`
	MinConns int           `yaml:"min_conns"`
	Timeout  time.Duration `yaml:"timeout"` // per batch / per query
}

const (
	DriverPgx = "pgx"
	DriverPQ  = "postgres"
)
