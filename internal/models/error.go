package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrUnknownFix rejects conflict fix IDs the service does not know.
	ErrUnknownFix = errors.New("unknown conflict fix")
)
