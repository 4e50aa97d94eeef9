// Package session implements the lifecycle of per-peer secure channels:
// creation from HPKE handshake output, expiry, activity tracking, and a
// capacity-bounded manager that never silently evicts a live session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/sage/pkg/hpke"
	"github.com/sage-x-project/sage/pkg/sageerr"
)

// Session couples a single HPKE context to a bounded-lifetime DID binding.
// The HPKE context moves into the Session at construction and never
// leaves; external callers only ever see Encrypt/Decrypt results.
type Session struct {
	mu sync.Mutex

	ID           string
	ClientDID    string
	ServerDID    string
	ctx          *hpke.Context
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	MessageCount uint64

	// tornDown is set once an AEAD authentication failure is observed on
	// this session; per spec.md §7 no further traffic is accepted after
	// that point even if the failing ciphertext's sequence already
	// advanced the underlying context.
	tornDown bool
}

// New creates a session bound to now, expiring after maxAge.
func New(id, clientDID, serverDID string, ctx *hpke.Context, maxAge time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		ClientDID:    clientDID,
		ServerDID:    serverDID,
		ctx:          ctx,
		CreatedAt:    now,
		ExpiresAt:    now.Add(maxAge),
		LastActivity: now,
	}
}

// NewID generates a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Expired reports whether now is past ExpiresAt. Exactly now == ExpiresAt
// is still valid, per spec.md §8's boundary behavior.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredLocked(now)
}

func (s *Session) expiredLocked(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Encrypt seals pt for transmission, refusing on an expired or torn-down
// session.
func (s *Session) Encrypt(pt []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tornDown {
		return nil, sageerr.New(sageerr.CodeDecryption, "session torn down after prior AEAD failure")
	}
	now := time.Now()
	if s.expiredLocked(now) {
		return nil, sageerr.New(sageerr.CodeSessionExpired, s.ID)
	}

	ct, err := s.ctx.Seal(pt)
	if err != nil {
		return nil, err
	}
	s.LastActivity = now
	s.MessageCount++
	return ct, nil
}

// Decrypt opens ct, refusing on an expired or torn-down session. An AEAD
// failure permanently tears down the session: no further Encrypt/Decrypt
// call on it will succeed.
func (s *Session) Decrypt(ct []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tornDown {
		return nil, sageerr.New(sageerr.CodeDecryption, "session torn down after prior AEAD failure")
	}
	now := time.Now()
	if s.expiredLocked(now) {
		return nil, sageerr.New(sageerr.CodeSessionExpired, s.ID)
	}

	pt, err := s.ctx.Open(ct)
	if err != nil {
		s.tornDown = true
		return nil, err
	}
	s.LastActivity = now
	return pt, nil
}

// Manager maps session IDs to Sessions, enforcing a hard capacity ceiling.
// Eviction policy is reject-never-evict: silently dropping a live session
// to make room would force its peer to re-handshake under attacker-chosen
// timing, a security regression.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	capacity int
}

// NewManager creates a Manager with the given capacity.
func NewManager(capacity int) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		capacity: capacity,
	}
}

// Add runs an expiry sweep, then inserts s if the live count is below
// capacity. Fails with CodeTooManySessions otherwise.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(time.Now())
	if len(m.sessions) >= m.capacity {
		return sageerr.New(sageerr.CodeTooManySessions, "session manager at capacity")
	}
	m.sessions[s.ID] = s
	return nil
}

// Get returns the session for id. A found-but-expired session is removed
// and reported as not found.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, sageerr.New(sageerr.CodeSessionNotFound, id)
	}
	if s.Expired(time.Now()) {
		delete(m.sessions, id)
		return nil, sageerr.New(sageerr.CodeSessionNotFound, id)
	}
	return s, nil
}

// Remove deletes id if present; idempotent.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// CleanupExpired removes all expired sessions and returns the count swept.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(time.Now())
}

func (m *Manager) sweepLocked(now time.Time) int {
	swept := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			swept++
		}
	}
	return swept
}

// Count returns the live session count after a sweep.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(time.Now())
	return len(m.sessions)
}

// Clear drops all sessions.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}
