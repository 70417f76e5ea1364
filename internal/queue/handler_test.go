package queue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *mockRepository) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(NewService(repo)).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router *chi.Mux, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Kind
}

func TestRetry_NotFailedIsBadRequest(t *testing.T) {
	router := newTestRouter(&mockRepository{retryErr: ErrJobNotFailed})

	rec := doRequest(t, router, http.MethodPost, "/queue/failed/1/retry")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", errorKind(t, rec))
}

func TestRetry_ActiveDuplicateIsConflict(t *testing.T) {
	router := newTestRouter(&mockRepository{retryErr: ErrActiveDuplicate})

	rec := doRequest(t, router, http.MethodPost, "/queue/failed/1/retry")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorKind(t, rec))
}

func TestRetry_NotFoundIs404(t *testing.T) {
	router := newTestRouter(&mockRepository{retryErr: ErrJobNotFound})

	rec := doRequest(t, router, http.MethodPost, "/queue/failed/1/retry")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, rec))
}
