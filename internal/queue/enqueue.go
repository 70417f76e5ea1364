// Package queue implements the shared work queue: the enqueue engine that
// turns trigger intents into idempotent bulk inserts, and dead-letter
// recovery for failed items.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devonjones/cortex-gateway/internal/domain"
)

// TriggerKind selects one of the fixed enqueue statement variants. Statements
// are chosen by kind, never assembled from untrusted input.
type TriggerKind int

// Enqueue triggers.
const (
	TriggerIDs TriggerKind = iota
	TriggerSenders
	TriggerLabel
	TriggerBackfill
	TriggerMappingChange
)

// String returns the trigger name used in logs and metrics labels.
func (k TriggerKind) String() string {
	switch k {
	case TriggerIDs:
		return "ids"
	case TriggerSenders:
		return "senders"
	case TriggerLabel:
		return "label"
	case TriggerBackfill:
		return "backfill"
	case TriggerMappingChange:
		return "mapping_change"
	}
	return "unknown"
}

// EnqueueRequest describes one enqueue intent. Exactly one of GmailIDs,
// Senders, or Label selects the targets for rerun triggers; Backfill uses the
// date window plus an optional Gmail label filter; MappingChange selects by
// exact sender address.
type EnqueueRequest struct {
	Queue   domain.QueueName
	Trigger TriggerKind

	GmailIDs     []string // TriggerIDs: explicit Gmail IDs
	Senders      []string // TriggerSenders: address patterns, glob * allowed
	Label        string   // TriggerLabel: resolved classification label
	GmailLabelID string   // TriggerBackfill: optional label_ids containment filter
	Address      string   // TriggerMappingChange: exact sender, case-insensitive

	Days     int  // look-back window for senders/label/backfill triggers
	Priority *int // caller override; defaults depend on trigger
	Force    bool // skip the non-terminal dedup pre-check
}

// defaultDays is the look-back window applied when the caller omits one.
const defaultDays = 7

// Validate rejects malformed or ambiguous requests before any statement is
// built. Trigger filters 1-3 are mutually exclusive.
func (r *EnqueueRequest) Validate() error {
	if !r.Queue.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidQueue, r.Queue)
	}

	switch r.Trigger {
	case TriggerIDs, TriggerSenders, TriggerLabel:
		provided := 0
		if len(r.GmailIDs) > 0 {
			provided++
		}
		if len(r.Senders) > 0 {
			provided++
		}
		if r.Label != "" {
			provided++
		}
		if provided == 0 {
			return ErrNoFilter
		}
		if provided > 1 {
			return ErrConflictingFilters
		}
	case TriggerBackfill:
		// only the date window is required
	case TriggerMappingChange:
		if r.Address == "" {
			return fmt.Errorf("%w: mapping change requires an address", ErrNoFilter)
		}
	default:
		return fmt.Errorf("unknown trigger kind %d", r.Trigger)
	}

	if r.Trigger != TriggerIDs && r.Trigger != TriggerMappingChange && r.Days < 0 {
		return ErrInvalidDays
	}

	return nil
}

// EffectivePriority resolves the priority for the insert: caller override for
// triggers 1-4, fixed defaults otherwise. Mapping-change is never overridable.
func (r *EnqueueRequest) EffectivePriority() int {
	if r.Trigger == TriggerMappingChange {
		return domain.PriorityMappingChange
	}
	if r.Priority != nil {
		return *r.Priority
	}
	if r.Trigger == TriggerBackfill {
		return domain.PriorityBackfill
	}
	return domain.PriorityDefault
}

func (r *EnqueueRequest) effectiveDays() int {
	if r.Days == 0 {
		return defaultDays
	}
	return r.Days
}

// globToLike converts a glob pattern to a SQL LIKE pattern: SQL wildcard
// characters are escaped first so an underscore in an address matches
// literally, then glob * becomes %. Patterns must be matched with ESCAPE '\'.
func globToLike(pattern string) string {
	s := strings.ReplaceAll(pattern, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return strings.ReplaceAll(s, `*`, `%`)
}

// onConflict mirrors the partial unique index on (queue_name, gmail_id) over
// non-terminal rows. Racing triggers both pass any pre-check, but only one
// insert wins; the loser is skipped, not failed.
const onConflict = `
ON CONFLICT (queue_name, gmail_id) WHERE status IN ('pending', 'processing')
DO NOTHING`

// Build compiles the request into one parameterized INSERT ... SELECT
// statement. The statement is self-deduplicating: the anti-join suppresses
// targets that already have a non-terminal item (unless Force), and the
// conflict clause arbitrates races between concurrent triggers.
func (r *EnqueueRequest) Build() (string, []any, error) {
	if err := r.Validate(); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	args := make([]any, 0, 8)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	queueArg := arg(string(r.Queue))
	prioArg := arg(r.EffectivePriority())

	b.WriteString(`INSERT INTO queue (queue_name, gmail_id, payload, priority, status)
`)

	rerunPayload := `jsonb_build_object('email_id', er.id, 'gmail_id', er.gmail_id, 'rerun', true)`

	switch r.Trigger {
	case TriggerIDs:
		fmt.Fprintf(&b, `SELECT %s, er.gmail_id, %s, %s, 'pending'
FROM emails_raw er
WHERE er.gmail_id = ANY(%s)`, queueArg, rerunPayload, prioArg, arg(r.GmailIDs))

	case TriggerSenders:
		fmt.Fprintf(&b, `SELECT DISTINCT ON (er.gmail_id) %s, er.gmail_id, %s, %s, 'pending'
FROM emails_raw er
JOIN emails_parsed ep ON ep.gmail_id = er.gmail_id
WHERE er.created_at >= NOW() - make_interval(days => %s)`,
			queueArg, rerunPayload, prioArg, arg(r.effectiveDays()))

		conds := make([]string, 0, len(r.Senders))
		for _, s := range r.Senders {
			conds = append(conds, fmt.Sprintf(`ep.from_addr LIKE %s ESCAPE '\'`, arg(globToLike(s))))
		}
		fmt.Fprintf(&b, "\nAND (%s)", strings.Join(conds, " OR "))

	case TriggerLabel:
		fmt.Fprintf(&b, `SELECT DISTINCT ON (er.gmail_id) %s, er.gmail_id, %s, %s, 'pending'
FROM emails_raw er
JOIN LATERAL (
	SELECT c.label FROM classifications c
	WHERE c.gmail_id = er.gmail_id
	ORDER BY c.classified_at DESC
	LIMIT 1
) latest ON TRUE
WHERE er.created_at >= NOW() - make_interval(days => %s)
AND latest.label = %s`,
			queueArg, rerunPayload, prioArg, arg(r.effectiveDays()), arg(r.Label))

	case TriggerBackfill:
		fmt.Fprintf(&b, `SELECT %s, er.gmail_id, jsonb_build_object('gmail_id', er.gmail_id, 'backfill', true), %s, 'pending'
FROM emails_raw er
WHERE er.created_at >= NOW() - make_interval(days => %s)`,
			queueArg, prioArg, arg(r.effectiveDays()))

		if r.GmailLabelID != "" {
			labelJSON, err := json.Marshal([]string{r.GmailLabelID})
			if err != nil {
				return "", nil, fmt.Errorf("marshal label filter: %w", err)
			}
			fmt.Fprintf(&b, "\nAND er.label_ids @> %s::jsonb", arg(string(labelJSON)))
		}

	case TriggerMappingChange:
		payload := `jsonb_build_object('email_id', er.id, 'gmail_id', er.gmail_id, 'rerun', true, 'reason', 'mapping_change')`
		fmt.Fprintf(&b, `SELECT DISTINCT ON (er.gmail_id) %s, er.gmail_id, %s, %s, 'pending'
FROM emails_raw er
JOIN emails_parsed ep ON ep.gmail_id = er.gmail_id
WHERE LOWER(ep.from_addr) = LOWER(%s)`,
			queueArg, payload, prioArg, arg(r.Address))
	}

	if !r.Force {
		fmt.Fprintf(&b, `
AND NOT EXISTS (
	SELECT 1 FROM queue q
	WHERE q.queue_name = %s
	AND q.gmail_id = er.gmail_id
	AND q.status IN ('pending', 'processing')
)`, queueArg)
	}

	// one row per target, newest source row wins
	switch r.Trigger {
	case TriggerSenders, TriggerLabel, TriggerMappingChange:
		b.WriteString("\nORDER BY er.gmail_id, er.created_at DESC")
	}

	b.WriteString(onConflict)

	return b.String(), args, nil
}

// NewMappingChangeRequest builds the enqueue intent composed into a mapping
// mutation transaction: every stored email from the address is re-triaged at
// the mapping-change priority.
func NewMappingChangeRequest(address string) EnqueueRequest {
	return EnqueueRequest{
		Queue:   domain.QueueTriage,
		Trigger: TriggerMappingChange,
		Address: address,
	}
}
