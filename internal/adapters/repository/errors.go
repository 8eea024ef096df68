package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound          = errors.New("result not found")
	ErrInvalidLimit      = errors.New("invalid ranking limit")
	ErrInvalidResult     = errors.New("invalid result")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrMigration         = errors.New("migration failed")
)
