package scoring

import "errors"

// Sentinel errors for scoring.
var (
	ErrInvalidPlayer = errors.New("invalid player")
	ErrNoReference   = errors.New("scorer requires a reference table")
)
