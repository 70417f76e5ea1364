package queue

import "errors"

// Enqueue engine errors.
var (
	ErrNoFilter           = errors.New("must specify gmail_ids, label, or senders filter")
	ErrConflictingFilters = errors.New("only one filter type allowed (gmail_ids, label, or senders)")
	ErrInvalidQueue       = errors.New("invalid queue name")
	ErrInvalidDays        = errors.New("days must be a positive integer")
	ErrEnqueueFailed      = errors.New("enqueue failed")
)

// Dead-letter recovery errors.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotFailed    = errors.New("job is not failed")
	ErrActiveDuplicate = errors.New("a live item already exists for this message")
)
