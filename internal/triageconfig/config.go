// Package triageconfig manages versioned triage rule configuration: YAML
// documents imported through the API, validated, stored immutably, and
// activated one at a time. Rollback never rewrites history; it creates a new
// version carrying the old content.
package triageconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the parsed shape of a triage config YAML.
type Document struct {
	LabelPrefix      string                `yaml:"label_prefix"`
	Chains           map[string][]Rule     `yaml:"chains"`
	PriorityMappings map[string]RuleAction `yaml:"priority_email_mappings"`
	FallbackMappings map[string]RuleAction `yaml:"fallback_email_mappings"`
}

// Rule is one matching rule inside a chain.
type Rule struct {
	Name   string     `yaml:"name"`
	Match  RuleMatch  `yaml:"match"`
	Action RuleAction `yaml:"action"`
}

// RuleMatch holds the matching conditions of a rule.
type RuleMatch struct {
	From    []string `yaml:"from,omitempty"`
	Subject []string `yaml:"subject,omitempty"`
	ListID  []string `yaml:"list_id,omitempty"`
}

// RuleAction is the outcome applied when a rule or mapping matches.
type RuleAction struct {
	Label    string `yaml:"label"`
	Archive  *bool  `yaml:"archive,omitempty"`
	MarkRead *bool  `yaml:"mark_read,omitempty"`
}

// Stats summarizes a validated document.
type Stats struct {
	Chains           int `json:"chains"`
	Rules            int `json:"rules"`
	PriorityMappings int `json:"priority_mappings"`
	FallbackMappings int `json:"fallback_mappings"`
}

// Parse decodes and structurally checks a config document. Returned problems
// are human-readable findings, not parse failures.
func Parse(content []byte) (*Document, []string, error) {
	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse yaml: %w", err)
	}

	var problems []string
	if doc.LabelPrefix == "" {
		problems = append(problems, "label_prefix is required")
	}
	for chain, rules := range doc.Chains {
		if len(rules) == 0 {
			problems = append(problems, fmt.Sprintf("chain %q has no rules", chain))
		}
		for i, rule := range rules {
			if rule.Name == "" {
				problems = append(problems, fmt.Sprintf("chain %q rule %d has no name", chain, i))
			}
			if rule.Action.Label == "" {
				problems = append(problems, fmt.Sprintf("chain %q rule %q has no action label", chain, rule.Name))
			}
			if len(rule.Match.From) == 0 && len(rule.Match.Subject) == 0 && len(rule.Match.ListID) == 0 {
				problems = append(problems, fmt.Sprintf("chain %q rule %q has no match conditions", chain, rule.Name))
			}
		}
	}
	for addr, action := range doc.PriorityMappings {
		if action.Label == "" {
			problems = append(problems, fmt.Sprintf("priority mapping %q has no label", addr))
		}
	}
	for addr, action := range doc.FallbackMappings {
		if action.Label == "" {
			problems = append(problems, fmt.Sprintf("fallback mapping %q has no label", addr))
		}
	}

	return &doc, problems, nil
}

// CountStats tallies the document's components.
func (d *Document) CountStats() Stats {
	rules := 0
	for _, chain := range d.Chains {
		rules += len(chain)
	}
	return Stats{
		Chains:           len(d.Chains),
		Rules:            rules,
		PriorityMappings: len(d.PriorityMappings),
		FallbackMappings: len(d.FallbackMappings),
	}
}

// Hash returns the content hash used to detect no-op imports.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
