package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

type sessionEntry struct {
	session library.Session
	expires time.Time
}

// SessionStore keeps logged-in operators in memory, keyed by an opaque token.
// Sessions end on logout, on expiry, or when the process exits.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]sessionEntry
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]sessionEntry),
	}
}

func (s *SessionStore) Create(sess library.Session) (token string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	token = uuid.NewString()
	expires = s.now().Add(s.ttl)
	s.sessions[token] = sessionEntry{session: sess, expires: expires}
	return token, expires
}

func (s *SessionStore) Get(token string) (library.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[token]
	if !ok {
		return library.Session{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.sessions, token)
		return library.Session{}, false
	}
	return e.session, true
}

func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) sweepLocked() {
	now := s.now()
	for token, e := range s.sessions {
		if !now.Before(e.expires) {
			delete(s.sessions, token)
		}
	}
}
