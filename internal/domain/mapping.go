package domain

import "time"

// MappingType distinguishes priority mappings (checked before rules) from
// fallback mappings (checked after no rule matched).
type MappingType string

// Mapping types.
const (
	MappingTypePriority MappingType = "priority"
	MappingTypeFallback MappingType = "fallback"
)

// IsValid checks if the mapping type is known.
func (t MappingType) IsValid() bool {
	return t == MappingTypePriority || t == MappingTypeFallback
}

// EmailMapping is a sender-to-label triage rule. Email addresses are stored
// normalized to lowercase; uniqueness of (mapping_type, email_address) holds
// among non-deleted rows only.
type EmailMapping struct {
	ID           int64       `json:"id"`
	MappingType  MappingType `json:"mapping_type"`
	EmailAddress string      `json:"email_address"`
	Label        string      `json:"label"`
	Archive      *bool       `json:"archive"`
	MarkRead     *bool       `json:"mark_read"`
	CreatedBy    string      `json:"created_by"`
	UpdatedBy    *string     `json:"updated_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	DeletedAt    *time.Time  `json:"deleted_at,omitempty"`
}

// MappingChangeType labels a history row with the mutation that produced it.
type MappingChangeType string

// Mapping change types.
const (
	MappingChangeCreate MappingChangeType = "create"
	MappingChangeUpdate MappingChangeType = "update"
	MappingChangeDelete MappingChangeType = "delete"
)

// MappingHistoryEntry is the audit record written in the same transaction as
// every live-row mutation.
type MappingHistoryEntry struct {
	ID               int64             `json:"id"`
	MappingID        int64             `json:"mapping_id"`
	MappingType      MappingType       `json:"mapping_type"`
	EmailAddress     string            `json:"email_address"`
	Label            string            `json:"label"`
	Archive          *bool             `json:"archive"`
	MarkRead         *bool             `json:"mark_read"`
	ChangeType       MappingChangeType `json:"change_type"`
	ChangedAt        time.Time         `json:"changed_at"`
	ChangedBy        string            `json:"changed_by"`
	PreviousLabel    *string           `json:"previous_label"`
	PreviousArchive  *bool             `json:"previous_archive"`
	PreviousMarkRead *bool             `json:"previous_mark_read"`
}

// WorkerSignal is a coalesced, level-triggered flag read by an out-of-band
// worker. Duplicate signals of the same type/target are a no-op on insert.
type WorkerSignal struct {
	SignalType   string    `json:"signal_type"`
	TargetWorker string    `json:"target_worker"`
	CreatedAt    time.Time `json:"created_at"`
}

// Signal constants for the triage worker's mapping reload.
const (
	SignalMappingsReload = "mappings_reload"
	WorkerTriage         = "triage"
)
