package domain

import "time"

// Classification is one triage decision for an email. MatchedRule is nil when
// the decision came from the LLM classifier rather than a rule chain.
type Classification struct {
	GmailID      string     `json:"gmail_id"`
	MatchedRule  *string    `json:"matched_rule"`
	Label        *string    `json:"label"`
	Action       *string    `json:"action"`
	LLMCategory  *string    `json:"llm_category,omitempty"`
	Confidence   *float64   `json:"confidence,omitempty"`
	Subject      *string    `json:"subject,omitempty"`
	FromAddr     *string    `json:"from_addr,omitempty"`
	ClassifiedAt time.Time  `json:"created_at"`
}

// ClassifierCount is one row of the classification stats breakdown.
type ClassifierCount struct {
	Classifier string  `json:"classifier"`
	Label      *string `json:"label"`
	Action     *string `json:"action"`
	Count      int64   `json:"count"`
}

// HourlyCount is one bucket of recent classification activity.
type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// LabelCount pairs a resolved label with its distinct-email count.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// SenderCount pairs a sender address with an email count.
type SenderCount struct {
	FromAddr string `json:"from_addr"`
	Count    int64  `json:"count"`
}
