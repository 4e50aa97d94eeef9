// Package session provides high-level abstractions for HPKE session
// management. It wraps pkg/session.Manager to give the HPKE server/client
// wrappers a narrower surface than the core package exposes.
package session

import (
	sagesession "github.com/sage-x-project/sage/pkg/session"
)

// Manager manages HPKE encryption sessions for agent-to-agent
// communication. It maintains a mapping of session IDs to encryption
// contexts, allowing stateful encrypted communication after the initial
// handshake.
//
// This wraps pkg/session.Manager, which enforces the capacity bound and
// expiry sweep; this wrapper adds nothing but a narrower name for
// call sites that only ever need Add/Get/Remove.
type Manager struct {
	underlying *sagesession.Manager
}

// NewManager creates a new session manager bounded to capacity concurrent
// sessions.
//
// Returns:
//   - *Manager: A new session manager instance
//
// Example:
//
//	sessionMgr := session.NewManager(1000)
func NewManager(capacity int) *Manager {
	return &Manager{
		underlying: sagesession.NewManager(capacity),
	}
}

// Add registers a new session, rejecting it if the manager is at capacity
// after sweeping expired entries.
func (m *Manager) Add(s *sagesession.Session) error {
	return m.underlying.Add(s)
}

// Get retrieves a session by ID, removing and reporting not-found if it
// has expired.
func (m *Manager) Get(id string) (*sagesession.Session, error) {
	return m.underlying.Get(id)
}

// Remove deletes a session by ID. Idempotent.
func (m *Manager) Remove(id string) {
	m.underlying.Remove(id)
}

// CleanupExpired sweeps all expired sessions.
func (m *Manager) CleanupExpired() int {
	return m.underlying.CleanupExpired()
}

// Count returns the number of sessions currently tracked.
func (m *Manager) Count() int {
	return m.underlying.Count()
}

// GetUnderlying returns the underlying pkg/session.Manager.
// This is used for integration with the HPKE server/client wrappers which
// accept the core package's Manager directly.
//
// Returns:
//   - *sagesession.Manager: The underlying session manager
func (m *Manager) GetUnderlying() *sagesession.Manager {
	return m.underlying
}
