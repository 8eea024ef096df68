// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) returns a Config holding every default.
// - Load(ctx) layers a YAML file and POSFIT_ environment variables on top.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: json or text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory player queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize caps the per-batch duplicate tracker; 0 is unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxTopLimit caps GET /positions/{pos}/top?limit.
	MaxTopLimit int `koanf:"max_top_limit"`

	Reference  ReferenceConfig  `koanf:"reference"`
	Database   DatabaseConfig   `koanf:"database"`
	Goalkeeper GoalkeeperConfig `koanf:"goalkeeper"`
}

// ReferenceConfig selects where the per-position feature tables come from.
// With neither Path nor CSVDir set the embedded default table is used.
type ReferenceConfig struct {
	// Path is a YAML reference document.
	Path string `koanf:"path"`

	// CSVDir holds feat_/corr_/stats_ CSV files per position.
	CSVDir string `koanf:"csv_dir"`

	// PositiveOnly drops features not positively correlated with the position.
	PositiveOnly bool `koanf:"positive_only"`

	// TopN caps features kept per position from a CSV gain table.
	TopN int `koanf:"top_n"`

	// Population is a players CSV used to derive missing stats files.
	Population string `koanf:"population"`
}

// DatabaseConfig configures the optional SQL result store.
// An empty Driver keeps results in memory.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// GoalkeeperConfig toggles the optional goalkeeper annotation.
type GoalkeeperConfig struct {
	Enabled bool `koanf:"enabled"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "json",
		Addr:        ":9080",
		WorkerCount: runtime.NumCPU(),
		QueueSize:   4096,
		DedupeSize:  0,
		MaxTopLimit: 100,
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    5 * time.Second,
			AutoMigrate:     true,
		},
	}
}

// Validate checks value ranges and combinations.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.MaxTopLimit < 1:
		return fmt.Errorf("%w: max_top_limit must be positive, got %d", ErrInvalidConfig, c.MaxTopLimit)
	case c.Reference.TopN < 0:
		return fmt.Errorf("%w: reference.top_n must not be negative, got %d", ErrInvalidConfig, c.Reference.TopN)
	case c.Reference.Path != "" && c.Reference.CSVDir != "":
		return fmt.Errorf("%w: reference.path and reference.csv_dir are mutually exclusive", ErrInvalidConfig)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log_format must be json or text, got %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.Database.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for driver %q", ErrInvalidConfig, c.Database.Driver)
		}
	default:
		return fmt.Errorf("%w: unsupported database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	return nil
}
