// Package domain contains the shared entities of the email pipeline gateway.
package domain

import (
	"encoding/json"
	"time"
)

// EmailSummary is the listing projection joining raw and parsed email rows.
type EmailSummary struct {
	GmailID    string          `json:"gmail_id"`
	FromAddr   *string         `json:"from_addr"`
	ToAddrs    json.RawMessage `json:"to_addrs,omitempty"`
	Subject    *string         `json:"subject"`
	DateHeader *time.Time      `json:"date_header"`
	LabelIDs   json.RawMessage `json:"label_ids"`
}

// EmailDetail is the full projection of a stored email, including header
// metadata from the raw row and addressing from the parsed row.
type EmailDetail struct {
	GmailID        string           `json:"gmail_id"`
	HistoryID      *int64           `json:"history_id"`
	LabelIDs       json.RawMessage  `json:"label_ids"`
	Headers        json.RawMessage  `json:"headers,omitempty"`
	InternalDate   *time.Time       `json:"internal_date"`
	CreatedAt      time.Time        `json:"created_at"`
	FromAddr       *string          `json:"from_addr"`
	FromName       *string          `json:"from_name"`
	ToAddrs        json.RawMessage  `json:"to_addrs,omitempty"`
	CcAddrs        json.RawMessage  `json:"cc_addrs,omitempty"`
	Subject        *string          `json:"subject"`
	DateHeader     *time.Time       `json:"date_header"`
	MessageID      *string          `json:"message_id"`
	InReplyTo      *string          `json:"in_reply_to"`
	Refs           json.RawMessage  `json:"refs,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

// EmailCounts aggregates pipeline progress over the relational store.
type EmailCounts struct {
	TotalEmails      int64 `json:"total_emails"`
	ParsedEmails     int64 `json:"parsed_emails"`
	ClassifiedEmails int64 `json:"classified_emails"`
}

// GmailLabel is a label definition synced from Gmail.
type GmailLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
