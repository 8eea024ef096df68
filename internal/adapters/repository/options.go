package repository

import (
	"time"

	"github.com/okian/posfit/pkg/logger"
)

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithQueryTimeout bounds every statement issued by the store.
func WithQueryTimeout(d time.Duration) SQLOption {
	return func(s *SQLStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSQLLogger sets the store logger.
func WithSQLLogger(l logger.Logger) SQLOption {
	return func(s *SQLStore) {
		if l != nil {
			s.log = l
		}
	}
}

// DBConfig holds connection settings for Open.
type DBConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DSN is a file path (or ":memory:") for sqlite and a connection URL for postgres.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}
