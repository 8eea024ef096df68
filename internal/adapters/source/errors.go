package source

import "errors"

// Sentinel errors for player sources.
var (
	ErrMalformedRow = errors.New("malformed player row")
	ErrReadSource   = errors.New("read players failed")
)
