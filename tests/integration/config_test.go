//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/devonjones/cortex-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configV1 = `label_prefix: Cortex
chains:
  default:
    - name: newsletters
      match:
        from: ["*@news.example.com"]
      action:
        label: Cortex/News
        archive: true
priority_mappings:
  boss@example.com:
    label: Cortex/Priority
fallback_mappings:
  "*@example.com":
    label: Cortex/Uncategorized
`

const configV2 = `label_prefix: Cortex
chains:
  default:
    - name: newsletters
      match:
        from: ["*@news.example.com"]
      action:
        label: Cortex/News
        archive: true
    - name: receipts
      match:
        subject: ["receipt", "invoice"]
      action:
        label: Cortex/Receipts
priority_mappings:
  boss@example.com:
    label: Cortex/Priority
fallback_mappings:
  "*@example.com":
    label: Cortex/Uncategorized
`

func cleanConfigVersions(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `DELETE FROM triage_config_versions`)
	require.NoError(t, err)
}

func importConfig(t *testing.T, content string) int {
	t.Helper()

	resp, err := asAdmin().POSTRaw("/api/v1/config", "application/x-yaml", []byte(content))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Version int `json:"version"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Version
}

func TestConfigImportAndVersioning(t *testing.T) {
	cleanConfigVersions(t)

	v1 := importConfig(t, configV1)
	assert.Equal(t, 1, v1)
	v2 := importConfig(t, configV2)
	assert.Equal(t, 2, v2)

	// The active config is the latest import, served as YAML.
	resp, err := testClient.GET("/api/v1/config")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, configV2, testutil.ReadBody(t, resp))

	resp, err = testClient.GET("/api/v1/config/versions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var versions struct {
		Versions []struct {
			Version  int  `json:"version"`
			IsActive bool `json:"is_active"`
		} `json:"versions"`
		Total int64 `json:"total"`
	}
	testutil.DecodeJSON(t, resp, &versions)
	require.Equal(t, int64(2), versions.Total)
	assert.Equal(t, 2, versions.Versions[0].Version)
	assert.True(t, versions.Versions[0].IsActive)
	assert.False(t, versions.Versions[1].IsActive)
}

func TestConfigRollback(t *testing.T) {
	cleanConfigVersions(t)

	importConfig(t, configV1)
	importConfig(t, configV2)

	resp, err := asAdmin().POST("/api/v1/config/rollback/1", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		NewVersion     int `json:"new_version"`
		RolledBackFrom int `json:"rolled_back_from"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, 3, result.NewVersion, "rollback appends, never rewrites")
	assert.Equal(t, 1, result.RolledBackFrom)

	resp, err = testClient.GET("/api/v1/config")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, configV1, testutil.ReadBody(t, resp))
}

func TestConfigRollbackUnknownVersion(t *testing.T) {
	cleanConfigVersions(t)
	importConfig(t, configV1)

	resp, err := asAdmin().POST("/api/v1/config/rollback/99", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfigImportRejectsInvalid(t *testing.T) {
	resp, err := asAdmin().POSTRaw("/api/v1/config", "application/x-yaml", []byte("chains: {}\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfigImportRequiresActor(t *testing.T) {
	resp, err := testClient.POSTRaw("/api/v1/config", "application/x-yaml", []byte(configV1))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfigValidate(t *testing.T) {
	resp, err := testClient.POSTRaw("/api/v1/config/validate", "application/x-yaml", []byte(configV2))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Valid bool `json:"valid"`
		Stats struct {
			Chains int `json:"chains"`
			Rules  int `json:"rules"`
		} `json:"stats"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Stats.Chains)
	assert.Equal(t, 2, result.Stats.Rules)

	resp, err = testClient.POSTRaw("/api/v1/config/validate", "application/x-yaml", []byte("chains: {}\n"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var invalid struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	testutil.DecodeJSON(t, resp, &invalid)
	assert.False(t, invalid.Valid)
	assert.NotEmpty(t, invalid.Errors)
}

func TestConfigDiff(t *testing.T) {
	cleanConfigVersions(t)

	importConfig(t, configV1)
	importConfig(t, configV2)

	resp, err := testClient.GET("/api/v1/config/diff/1/2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var diff struct {
		V1    int `json:"v1"`
		V2    int `json:"v2"`
		Stats struct {
			LinesAdded   int `json:"lines_added"`
			LinesRemoved int `json:"lines_removed"`
		} `json:"stats"`
	}
	testutil.DecodeJSON(t, resp, &diff)
	assert.Equal(t, 1, diff.V1)
	assert.Equal(t, 2, diff.V2)
	assert.Greater(t, diff.Stats.LinesAdded, 0)
	assert.Equal(t, 0, diff.Stats.LinesRemoved)
}

func TestConfigGetVersionDownload(t *testing.T) {
	cleanConfigVersions(t)
	importConfig(t, configV1)

	resp, err := testClient.GET("/api/v1/config/versions/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "config-v1.yaml")
	assert.Equal(t, configV1, testutil.ReadBody(t, resp))

	resp, err = testClient.GET("/api/v1/config/versions/42")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
