package gmailauth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func writeTokenFile(t *testing.T, tf TokenFile) string {
	t.Helper()
	raw, err := json.Marshal(tf)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStore_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestStore_UpdatePreservesClientCredentials(t *testing.T) {
	path := writeTokenFile(t, TokenFile{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Token:        "old-access",
		RefreshToken: "old-refresh",
	})
	store := NewStore(path)

	expiry := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	err := store.Update(&oauth2.Token{
		AccessToken: "new-access",
		Expiry:      expiry,
	})
	require.NoError(t, err)

	tf, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "client-id", tf.ClientID)
	assert.Equal(t, "client-secret", tf.ClientSecret)
	assert.Equal(t, "new-access", tf.Token)
	// An empty refresh token on the response must not clobber the stored one.
	assert.Equal(t, "old-refresh", tf.RefreshToken)
	require.NotNil(t, tf.Expiry)
	assert.True(t, tf.Expiry.Equal(expiry))
	assert.Equal(t, Scopes, tf.Scopes)
}

func TestStore_UpdateReplacesRefreshToken(t *testing.T) {
	path := writeTokenFile(t, TokenFile{
		ClientID:     "client-id",
		RefreshToken: "old-refresh",
	})
	store := NewStore(path)

	err := store.Update(&oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "new-refresh",
	})
	require.NoError(t, err)

	tf, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", tf.RefreshToken)
}

func TestStore_UpdateLeavesNoTempFiles(t *testing.T) {
	path := writeTokenFile(t, TokenFile{ClientID: "client-id"})
	store := NewStore(path)

	require.NoError(t, store.Update(&oauth2.Token{AccessToken: "access"}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestTokenFile_OAuth2TokenExpiry(t *testing.T) {
	tf := &TokenFile{Token: "access"}
	assert.True(t, tf.OAuth2Token().Expiry.Before(time.Now()),
		"unknown expiry must force an eager refresh")

	future := time.Now().Add(time.Hour)
	tf.Expiry = &future
	assert.True(t, tf.OAuth2Token().Expiry.After(time.Now()))
}

func TestStateStore_SingleUse(t *testing.T) {
	s := newStateStore(time.Minute)

	state, err := s.Issue()
	require.NoError(t, err)
	require.NotEmpty(t, state)

	assert.True(t, s.Consume(state))
	assert.False(t, s.Consume(state), "a state nonce must be single use")
	assert.False(t, s.Consume("never-issued"))
}

func TestStateStore_Expiry(t *testing.T) {
	s := newStateStore(-time.Second)

	state, err := s.Issue()
	require.NoError(t, err)
	assert.False(t, s.Consume(state), "an expired state must be rejected")
}
