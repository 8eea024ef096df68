package reference

import "errors"

// Sentinel errors for reference loading.
var (
	ErrNoReferenceData  = errors.New("no usable reference data")
	ErrInvalidReference = errors.New("invalid position reference")
	ErrLoadReference    = errors.New("load reference failed")
)
