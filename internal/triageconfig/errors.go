package triageconfig

import "errors"

// Config management errors.
var (
	ErrVersionNotFound = errors.New("config version not found")
	ErrNoActiveConfig  = errors.New("no active config version")
	ErrEmptyConfig     = errors.New("empty config body")
	ErrInvalidConfig   = errors.New("config validation failed")
	ErrActorRequired   = errors.New("X-Created-By header is required")
)
