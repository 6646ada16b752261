// Package session manages the collection of client sessions held by the
// server. Provides thread-safe access to session storage and lifecycle
// management with lazy expiry.
package session

import (
	"sync"
	"time"

	"github.com/pingmark/pingmark/internal/common/uuid"
)

// DefaultTTL is the session lifetime applied when no explicit value is configured.
const DefaultTTL = 3600 * time.Second

// Session holds the state recorded for one client session.
type Session struct {
	ID         string            // unique session identifier
	RemoteAddr string            // address the session was created from
	CreatedAt  time.Time         // creation time, the anchor for expiry
	Data       map[string]string // session-scoped key/value data
}

// Store is a lock-guarded registry of sessions. All operations are atomic
// with respect to each other; handlers on concurrent workers share one Store.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time // stubbed in tests
}

// NewStore creates an empty session store. Sessions expire ttl after
// creation; ttl values of zero or below fall back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new session for the given client address and returns
// its id. Ids are random UUIDs; creation always succeeds.
func (s *Store) Create(remoteAddr string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		CreatedAt:  s.now(),
		Data:       make(map[string]string),
	}
	s.mu.Unlock()
	return id
}

// Validate reports whether the session exists and has not expired. An
// expired session is evicted before returning false. Expiry is measured from
// creation time only; PING or UPDATE_DATA traffic does not extend a
// session's lifetime.
func (s *Store) Validate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked(id)
}

// validateLocked implements Validate. Callers must hold s.mu.
func (s *Store) validateLocked(id string) bool {
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	if s.now().Sub(sess.CreatedAt) > s.ttl {
		delete(s.sessions, id)
		return false
	}
	return true
}

// UpdateData sets key to value in the session's data map. Returns false
// without modifying anything if the session is absent or expired.
func (s *Store) UpdateData(id, key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validateLocked(id) {
		return false
	}
	s.sessions[id].Data[key] = value
	return true
}

// Close removes the session if present, expired or not. Returns false if
// there was nothing to remove.
func (s *Store) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Data returns a copy of the session's data map. Returns nil if the session
// is absent or expired.
func (s *Store) Data(id string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validateLocked(id) {
		return nil
	}
	data := make(map[string]string, len(s.sessions[id].Data))
	for k, v := range s.sessions[id].Data {
		data[k] = v
	}
	return data
}

// Len returns the number of sessions currently held, including expired
// entries that no lookup has evicted yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// List returns a snapshot of all live sessions, evicting any expired
// entries it encounters. The returned sessions are copies; mutating them
// does not affect the store.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if s.now().Sub(sess.CreatedAt) > s.ttl {
			delete(s.sessions, id)
			continue
		}
		cp := *sess
		cp.Data = make(map[string]string, len(sess.Data))
		for k, v := range sess.Data {
			cp.Data[k] = v
		}
		list = append(list, cp)
	}
	return list
}
