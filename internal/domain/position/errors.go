package position

import "errors"

// ErrUnknownPosition is returned when a string is not a known position code.
var ErrUnknownPosition = errors.New("unknown position")
