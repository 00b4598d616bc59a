package main

import (
	"crypto/md5"
	"fmt"
	"sync"
	"time"
)

// sessionCookieName carries the sticky-session identifier.
const sessionCookieName = "lb_session_id"

type sessionEntry struct {
	backendKey string
	createdAt  time.Time
}

// SessionTable binds opaque session identifiers to backend keys. Entries
// expire after the configured TTL, measured from creation.
type SessionTable struct {
	mu      sync.RWMutex
	entries map[string]sessionEntry
	ttl     time.Duration
}

// NewSessionTable creates an empty session table.
func NewSessionTable(ttl time.Duration) *SessionTable {
	return &SessionTable{
		entries: make(map[string]sessionEntry),
		ttl:     ttl,
	}
}

// Get returns the backend key bound to the session, if any.
func (t *SessionTable) Get(sessionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[sessionID]
	return entry.backendKey, ok
}

// Put binds a session to a backend key. Rebinding an existing session
// refreshes its creation time.
func (t *SessionTable) Put(sessionID, backendKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[sessionID] = sessionEntry{backendKey: backendKey, createdAt: time.Now()}
}

// Delete drops a session binding.
func (t *SessionTable) Delete(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, sessionID)
}

// Len returns the number of active sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// DeleteByBackend drops every session bound to the given backend key. Used
// when a backend is deregistered so its bindings do not linger until the
// next lookup.
func (t *SessionTable) DeleteByBackend(backendKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, entry := range t.entries {
		if entry.backendKey == backendKey {
			delete(t.entries, id)
		}
	}
}

// Sweep removes every session older than the TTL and returns how many were
// evicted.
func (t *SessionTable) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, entry := range t.entries {
		if now.Sub(entry.createdAt) > t.ttl {
			delete(t.entries, id)
			evicted++
		}
	}
	return evicted
}

// NewSessionID mints a fresh session identifier from the client address,
// User-Agent and creation time. The nanosecond timestamp keeps two
// near-simultaneous requests from the same client distinct.
func NewSessionID(remoteAddr, userAgent string, now time.Time) string {
	data := fmt.Sprintf("%s:%s:%d", remoteAddr, userAgent, now.UnixNano())
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}
