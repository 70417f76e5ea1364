package domain

import (
	"encoding/json"
	"time"
)

// QueueName identifies one of the named work queues drained by pipeline workers.
type QueueName string

// Queue names.
const (
	QueueTriage     QueueName = "triage"
	QueueParse      QueueName = "parse"
	QueueAttachment QueueName = "attachment"
)

// IsValid checks if the queue name is one of the known queues.
func (q QueueName) IsValid() bool {
	switch q {
	case QueueTriage, QueueParse, QueueAttachment:
		return true
	}
	return false
}

// QueueStatus represents the lifecycle state of a queue item.
type QueueStatus string

// Queue item statuses. Pending and processing are non-terminal: at most one
// item per (queue_name, gmail_id) may be in a non-terminal status at a time.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusCancelled  QueueStatus = "cancelled"
)

// IsTerminal returns true if no worker will pick the item up again.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusFailed || s == QueueStatusCancelled
}

// Queue default priorities. Lower values drain later: the worker pops the
// highest priority first, so bulk work is kept behind real-time items.
const (
	PriorityDefault       = 0
	PriorityBackfill      = -100
	PriorityMappingChange = -200
)

// QueueItem is one unit of work tracked against an email and a named queue.
type QueueItem struct {
	ID        int64           `json:"id"`
	QueueName QueueName       `json:"queue_name"`
	GmailID   string          `json:"gmail_id"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Status    QueueStatus     `json:"status"`
	Error     *string         `json:"error,omitempty"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// QueueStats maps queue name to per-status item counts.
type QueueStats map[QueueName]map[QueueStatus]int64
