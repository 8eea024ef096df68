package scoring

import "github.com/okian/posfit/pkg/logger"

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithLogger sets the logger used to report recovered failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGoalkeeper enables the separate goalkeeper rating for GK players.
func WithGoalkeeper(g *GoalkeeperScorer) Option {
	return func(s *Scorer) {
		s.goalkeeper = g
	}
}
