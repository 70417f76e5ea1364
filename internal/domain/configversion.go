package domain

import "time"

// ConfigVersion is one immutable version of the triage rules config. The
// YAML document itself lives in Content; exactly one version is active.
type ConfigVersion struct {
	Version        int       `json:"version"`
	ConfigHash     string    `json:"config_hash"`
	LabelPrefix    string    `json:"label_prefix"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by"`
	Notes          *string   `json:"notes"`
	IsActive       bool      `json:"is_active"`
	RolledBackFrom *int      `json:"rolled_back_from"`
}
