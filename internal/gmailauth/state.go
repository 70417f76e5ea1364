package gmailauth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// stateStore holds single-use CSRF nonces for in-flight consent flows. The
// gateway is stateless otherwise, so this is a small in-memory TTL map
// rather than a session layer.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		states: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// Issue creates a new nonce.
func (s *stateStore) Issue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.states[state] = time.Now().Add(s.ttl)
	return state, nil
}

// Consume validates and invalidates a nonce. Each state is good for exactly
// one callback.
func (s *stateStore) Consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Now().Before(deadline)
}

// sweep drops expired entries; called under the lock.
func (s *stateStore) sweep() {
	now := time.Now()
	for state, deadline := range s.states {
		if now.After(deadline) {
			delete(s.states, state)
		}
	}
}
