// Package gmailauth manages the Gmail OAuth credential used by the sync
// worker: a JSON token file shared with the rest of the pipeline, refreshed
// either non-interactively or through a browser consent flow served by the
// gateway. The gateway never talks to Gmail itself; it only keeps the token
// healthy.
package gmailauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// Scopes requested for the sync worker's credential.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
	gmail.MailGoogleComScope,
}

// ErrNoToken reports a missing token file.
var ErrNoToken = errors.New("token file not found")

// ErrNoRefreshToken reports a token that cannot be refreshed without a new
// consent flow.
var ErrNoRefreshToken = errors.New("no refresh token available")

// TokenFile is the on-disk credential format shared with the sync worker.
type TokenFile struct {
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refresh_token"`
	TokenURI     string     `json:"token_uri"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
}

// Store reads and writes the token file. Writes are atomic so the sync
// worker never observes a partially written credential.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a token store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the token file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the token file.
func (s *Store) Load() (*TokenFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*TokenFile, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, s.path)
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var tf TokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tf, nil
}

// Update merges a freshly obtained oauth2 token into the file, preserving
// the client credentials, and writes it via temp file plus rename.
func (s *Store) Update(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := s.load()
	if err != nil {
		return err
	}

	tf.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		tf.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		tf.Expiry = &expiry
	}
	if len(tf.Scopes) == 0 {
		tf.Scopes = Scopes
	}

	raw, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// OAuthConfig builds the oauth2 config from the stored client credentials.
func (tf *TokenFile) OAuthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     tf.ClientID,
		ClientSecret: tf.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

// OAuth2Token converts the stored credential for use with a TokenSource.
// Expiry is forced into the past when unknown so refresh happens eagerly.
func (tf *TokenFile) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  tf.Token,
		RefreshToken: tf.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	if tf.Expiry != nil {
		tok.Expiry = *tf.Expiry
	}
	return tok
}
