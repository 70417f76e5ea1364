//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var gmailIDSeq atomic.Int64

// nextGmailID returns a process-unique message id so tests do not collide.
func nextGmailID() string {
	return fmt.Sprintf("msg-%d-%d", time.Now().UnixNano(), gmailIDSeq.Add(1))
}

// seedEmail inserts a raw email row and its parsed projection.
func seedEmail(t *testing.T, gmailID, fromAddr string, labelIDs string) {
	t.Helper()
	ctx := context.Background()

	if labelIDs == "" {
		labelIDs = "[]"
	}

	_, err := testDB.Exec(ctx, `
		INSERT INTO emails_raw (gmail_id, label_ids, created_at)
		VALUES ($1, $2::jsonb, NOW())
	`, gmailID, labelIDs)
	require.NoError(t, err)

	_, err = testDB.Exec(ctx, `
		INSERT INTO emails_parsed (gmail_id, from_addr, subject, date_header)
		VALUES ($1, $2, 'test subject', NOW())
	`, gmailID, fromAddr)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM emails_raw WHERE gmail_id = $1`, gmailID)
	})
}

// seedClassification records a classification for a seeded email.
func seedClassification(t *testing.T, gmailID, label, action string, matchedRule *string) {
	t.Helper()

	_, err := testDB.Exec(context.Background(), `
		INSERT INTO classifications (gmail_id, matched_rule, label, action)
		VALUES ($1, $2, $3, $4)
	`, gmailID, matchedRule, label, action)
	require.NoError(t, err)
}

// seedQueueItem inserts a queue row in the given status and returns its id.
func seedQueueItem(t *testing.T, queueName, gmailID, status string) int64 {
	t.Helper()

	var id int64
	err := testDB.QueryRow(context.Background(), `
		INSERT INTO queue (queue_name, gmail_id, status, error, attempts)
		VALUES ($1, $2, $3, CASE WHEN $3 = 'failed' THEN 'worker exploded' END,
		        CASE WHEN $3 = 'failed' THEN 3 ELSE 0 END)
		RETURNING id
	`, queueName, gmailID, status).Scan(&id)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM queue WHERE id = $1`, id)
	})
	return id
}

// queueRowCount counts queue rows for a queue/status pair.
func queueRowCount(t *testing.T, queueName, status string) int {
	t.Helper()

	var n int
	err := testDB.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM queue WHERE queue_name = $1 AND status = $2
	`, queueName, status).Scan(&n)
	require.NoError(t, err)
	return n
}

// cleanQueue removes every queue row. Tests that assert on enqueue counts
// call it first so rows from other tests cannot interfere.
func cleanQueue(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `DELETE FROM queue`)
	require.NoError(t, err)
}
