package auth

import (
	"sync"
	"time"
)

const revocationSweepInterval = 5 * time.Minute

type revokedToken struct {
	userID    string
	expiresAt time.Time
}

// RevokedToken is the exported view of one revocation entry.
type RevokedToken struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevocationStore tracks revoked JWT IDs in memory. Entries expire with the
// token they revoke; a background sweeper drops them once the token would have
// expired on its own. Safe for concurrent use.
type RevocationStore struct {
	mu     sync.RWMutex
	byJTI  map[string]revokedToken
	byUser map[string]map[string]struct{}
	done   chan struct{}
}

func NewRevocationStore() *RevocationStore {
	s := &RevocationStore{
		byJTI:  make(map[string]revokedToken),
		byUser: make(map[string]map[string]struct{}),
		done:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Revoke marks a JTI revoked until expiresAt. A non-empty userID associates
// the token with a user so RevokeUser can find it later.
func (s *RevocationStore) Revoke(jti, userID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byJTI[jti] = revokedToken{userID: userID, expiresAt: expiresAt}
	if userID != "" {
		if s.byUser[userID] == nil {
			s.byUser[userID] = make(map[string]struct{})
		}
		s.byUser[userID][jti] = struct{}{}
	}
}

// IsRevoked reports whether the JTI is on the revocation list.
func (s *RevocationStore) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byJTI[jti]
	return ok
}

// RevokeUser returns the number of tracked tokens held by the user. The
// tokens were already individually revoked when they were associated with the
// user; this reports how many are still live on the list.
func (s *RevocationStore) RevokeUser(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}

// Count returns the number of live revocation entries.
func (s *RevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byJTI)
}

// Entries returns a snapshot of the revocation list.
func (s *RevocationStore) Entries() []RevokedToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RevokedToken, 0, len(s.byJTI))
	for jti, t := range s.byJTI {
		out = append(out, RevokedToken{JTI: jti, UserID: t.userID, ExpiresAt: t.expiresAt})
	}
	return out
}

// Close stops the background sweeper. Safe to call more than once.
func (s *RevocationStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *RevocationStore) sweepLoop() {
	ticker := time.NewTicker(revocationSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep drops entries whose tokens have passed their natural expiry.
func (s *RevocationStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, t := range s.byJTI {
		if !now.After(t.expiresAt) {
			continue
		}
		delete(s.byJTI, jti)
		if t.userID != "" {
			delete(s.byUser[t.userID], jti)
			if len(s.byUser[t.userID]) == 0 {
				delete(s.byUser, t.userID)
			}
		}
	}
}
