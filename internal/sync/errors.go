package sync

import "errors"

// Sync job errors.
var (
	ErrJobNotFound        = errors.New("backfill job not found")
	ErrJobNotCancellable  = errors.New("backfill job cannot be cancelled")
	ErrWindowRequired     = errors.New("provide either days or after")
	ErrConflictingWindows = errors.New("provide either days or after, not both")
	ErrInvalidDays        = errors.New("days must be a positive integer")
	ErrInvalidAfterDate   = errors.New("invalid after date, expected YYYY-MM-DD")
)
