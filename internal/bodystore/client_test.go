package bodystore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, 2*time.Second, 5*time.Second), server
}

func TestClient_GetBody(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/body", r.URL.Path)
		assert.Equal(t, "g1", r.URL.Query().Get("gmail_id"))
		json.NewEncoder(w).Encode(Body{GmailID: "g1", Raw: "hello", MimeType: "text/plain"})
	})
	defer server.Close()

	body, err := client.GetBody(context.Background(), "g1")
	require.NoError(t, err)
	require.NotNil(t, body)
	assert.Equal(t, "hello", body.Raw)
}

func TestClient_GetBody_NotFoundIsAbsence(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	body, err := client.GetBody(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestClient_GetBody_ServerErrorIsUnavailable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := client.GetBody(context.Background(), "g1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_GetBody_UnreachableIsUnavailable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	server.Close() // connection refused from here on

	_, err := client.GetBody(context.Background(), "g1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_GetBodies(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bodies", r.URL.Path)
		assert.Equal(t, "g1,g2", r.URL.Query().Get("gmail_ids"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"bodies": []Body{{GmailID: "g1"}, {GmailID: "g2"}},
		})
	})
	defer server.Close()

	bodies, err := client.GetBodies(context.Background(), []string{"g1", "g2"})
	require.NoError(t, err)
	assert.Len(t, bodies, 2)
}

func TestClient_GetMailText(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "decoded text"})
	})
	defer server.Close()

	text, found, err := client.GetMailText(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "decoded text", text)
}

func TestClient_GetMailText_Missing(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	_, found, err := client.GetMailText(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_Healthy(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	assert.True(t, client.Healthy(context.Background()))

	server.Close()
	assert.False(t, client.Healthy(context.Background()))
}
