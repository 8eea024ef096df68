// Package loadtest drives a running posfit server with synthetic players
// and checks every returned result for internal consistency.
package loadtest

import (
	"errors"
	"time"
)

// Sentinel kinds for load test errors.
var (
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrInconsistent  = errors.New("inconsistent results")
	ErrNoAttributes  = errors.New("no attribute names to generate")
	ErrInvalidConfig = errors.New("invalid load test config")
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumPlayers int           // Number of players to generate
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Attributes []string      // Attribute names to populate
	MissingPct float64       // Share of attributes left out, 0..1
	OutputFile string        // Optional CSV of the generated players
	Verbose    bool          // Log every inconsistency
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base URL is required"))
	case c.NumPlayers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("number of players must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.MissingPct < 0 || c.MissingPct >= 1:
		return errors.Join(ErrInvalidConfig, errors.New("missing share must be in [0,1)"))
	case len(c.Attributes) == 0:
		return ErrNoAttributes
	}
	return nil
}

// Stats holds load test statistics.
type Stats struct {
	Generated     int            `json:"generated"`
	Submitted     int            `json:"submitted"`
	Successful    int            `json:"successful"`
	Failed        int            `json:"failed"`
	Fallbacks     int            `json:"fallbacks"`
	Inconsistent  int            `json:"inconsistent"`
	BestPositions map[string]int `json:"best_positions"`
	StartTime     time.Time      `json:"start_time"`
	Duration      time.Duration  `json:"duration_ns"`
}
