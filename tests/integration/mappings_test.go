//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/devonjones/cortex-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mappingResponse struct {
	ID           int64  `json:"id"`
	MappingType  string `json:"mapping_type"`
	EmailAddress string `json:"email_address"`
	Label        string `json:"label"`
	CreatedBy    string `json:"created_by"`
}

func asAdmin() *testutil.Client {
	return testClient.
		WithHeader(httputil.HeaderCreatedBy, "admin").
		WithHeader(httputil.HeaderUpdatedBy, "admin")
}

func createMapping(t *testing.T, address, label string) mappingResponse {
	t.Helper()

	resp, err := asAdmin().POST("/api/v1/mappings", map[string]interface{}{
		"mapping_type":  "priority",
		"email_address": address,
		"label":         label,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created mappingResponse
	testutil.DecodeJSON(t, resp, &created)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(),
			`DELETE FROM triage_email_mappings WHERE id = $1`, created.ID)
		_, _ = testDB.Exec(context.Background(),
			`DELETE FROM triage_email_mappings_history WHERE mapping_id = $1`, created.ID)
	})
	return created
}

func TestMappingCreateSideEffects(t *testing.T) {
	cleanQueue(t)

	gmailID := nextGmailID()
	seedEmail(t, gmailID, "newsletter@example.com", "")

	created := createMapping(t, "Newsletter@Example.COM", "Cortex/News")
	assert.Equal(t, "newsletter@example.com", created.EmailAddress,
		"addresses are normalized to lower case")
	assert.Equal(t, "admin", created.CreatedBy)

	ctx := context.Background()

	// The affected email was re-enqueued below backfill priority.
	var queuedGmailID string
	var priority int
	err := testDB.QueryRow(ctx, `
		SELECT gmail_id, priority FROM queue
		WHERE queue_name = 'triage' AND status = 'pending' AND gmail_id = $1
	`, gmailID).Scan(&queuedGmailID, &priority)
	require.NoError(t, err)
	assert.Equal(t, -200, priority)

	// The audit row landed in the same transaction.
	var changeType string
	err = testDB.QueryRow(ctx, `
		SELECT change_type FROM triage_email_mappings_history WHERE mapping_id = $1
	`, created.ID).Scan(&changeType)
	require.NoError(t, err)
	assert.Equal(t, "create", changeType)

	// The triage worker got its reload flag.
	var n int
	err = testDB.QueryRow(ctx, `
		SELECT COUNT(*) FROM worker_signals
		WHERE signal_type = 'mappings_reload' AND target_worker = 'triage'
	`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMappingDuplicateConflicts(t *testing.T) {
	createMapping(t, "dup@example.com", "Cortex/A")

	ctx := context.Background()
	var before int
	require.NoError(t, testDB.QueryRow(ctx, `SELECT COUNT(*) FROM worker_signals`).Scan(&before))

	resp, err := asAdmin().POST("/api/v1/mappings", map[string]interface{}{
		"mapping_type":  "priority",
		"email_address": "DUP@example.com",
		"label":         "Cortex/B",
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The transaction rolled back, so no side effects landed.
	var after int
	require.NoError(t, testDB.QueryRow(ctx, `SELECT COUNT(*) FROM worker_signals`).Scan(&after))
	assert.Equal(t, before, after)
}

func TestMappingRequiresActor(t *testing.T) {
	resp, err := testClient.POST("/api/v1/mappings", map[string]interface{}{
		"mapping_type":  "priority",
		"email_address": "anon@example.com",
		"label":         "Cortex/X",
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMappingLifecycleHistory(t *testing.T) {
	created := createMapping(t, "lifecycle@example.com", "Cortex/Old")

	resp, err := asAdmin().PUT(fmt.Sprintf("/api/v1/mappings/%d", created.ID), map[string]interface{}{
		"mapping_type":  "priority",
		"email_address": "lifecycle@example.com",
		"label":         "Cortex/New",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated mappingResponse
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, "Cortex/New", updated.Label)

	resp, err = asAdmin().DELETE(fmt.Sprintf("/api/v1/mappings/%d", created.ID))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = testClient.GET("/api/v1/mappings/history/lifecycle@example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		History []struct {
			ChangeType    string  `json:"change_type"`
			Label         string  `json:"label"`
			PreviousLabel *string `json:"previous_label"`
		} `json:"history"`
		Count int `json:"count"`
	}
	testutil.DecodeJSON(t, resp, &history)
	require.Equal(t, 3, history.Count)

	// Newest first: delete, update, create.
	assert.Equal(t, "delete", history.History[0].ChangeType)
	assert.Equal(t, "update", history.History[1].ChangeType)
	require.NotNil(t, history.History[1].PreviousLabel)
	assert.Equal(t, "Cortex/Old", *history.History[1].PreviousLabel)
	assert.Equal(t, "create", history.History[2].ChangeType)
}

func TestMappingDeleteFreesAddress(t *testing.T) {
	created := createMapping(t, "reuse@example.com", "Cortex/First")

	resp, err := asAdmin().DELETE(fmt.Sprintf("/api/v1/mappings/%d", created.ID))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	second := createMapping(t, "reuse@example.com", "Cortex/Second")
	assert.NotEqual(t, created.ID, second.ID)
}

func TestMappingListFilters(t *testing.T) {
	created := createMapping(t, "filterme@example.com", "Cortex/Filter")

	resp, err := testClient.GET("/api/v1/mappings?email=FILTERME@example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Mappings []mappingResponse `json:"mappings"`
		Count    int               `json:"count"`
	}
	testutil.DecodeJSON(t, resp, &listing)
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, created.ID, listing.Mappings[0].ID)

	resp, err = testClient.GET("/api/v1/mappings?type=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
