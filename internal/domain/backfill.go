package domain

import "time"

// BackfillStatus represents the lifecycle state of a Gmail sync backfill job.
type BackfillStatus string

// Backfill job statuses.
const (
	BackfillStatusPending   BackfillStatus = "pending"
	BackfillStatusRunning   BackfillStatus = "running"
	BackfillStatusCompleted BackfillStatus = "completed"
	BackfillStatusCancelled BackfillStatus = "cancelled"
	BackfillStatusFailed    BackfillStatus = "failed"
)

// IsValid checks if the status is a known backfill status.
func (s BackfillStatus) IsValid() bool {
	switch s {
	case BackfillStatusPending, BackfillStatusRunning, BackfillStatusCompleted,
		BackfillStatusCancelled, BackfillStatusFailed:
		return true
	}
	return false
}

// Cancellable reports whether a job in this status may still be cancelled.
// Cancellation is cooperative: a running job stops at its next page boundary.
func (s BackfillStatus) Cancellable() bool {
	return s == BackfillStatusPending || s == BackfillStatusRunning
}

// BackfillJob is a request for the external gmail-sync worker to fetch
// historical mail. The gateway only creates, lists and cancels jobs; the
// sync worker owns the pending -> running -> terminal transitions and the
// progress counters.
type BackfillJob struct {
	ID          string         `json:"id"`
	Status      BackfillStatus `json:"status"`
	Query       string         `json:"query"`
	Days        *int           `json:"days"`
	AfterDate   *time.Time     `json:"after_date"`
	Processed   int            `json:"processed"`
	Stored      int            `json:"stored"`
	Updated     int            `json:"updated"`
	Error       *string        `json:"error"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
}
