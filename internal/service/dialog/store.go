package dialog

import (
	"errors"
	"sync"
	"time"

	model "github.com/takeawayhq/voicedesk/backend/internal/model/dialog"
)

// DefaultSessionTTL is how long an idle session survives between turns.
const DefaultSessionTTL = 30 * time.Minute

// ErrEmptyCallerID rejects lookups with no caller identity.
var ErrEmptyCallerID = errors.New("caller id is empty")

// SessionStore keeps in-flight dialog sessions keyed by caller. Expiry is
// lazy: a stale session is discarded the next time its caller comes back,
// so no background sweeper is needed.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	ttl      time.Duration
	clock    Clock
}

// NewSessionStore builds a store; ttl <= 0 selects the default and a nil
// clock reads the wall clock.
func NewSessionStore(ttl time.Duration, clock Clock) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SessionStore{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		clock:    clock,
	}
}

// GetOrCreate returns the caller's live session, replacing it with a new
// one if the previous session idled past the TTL.
func (s *SessionStore) GetOrCreate(callerID string) (*model.Session, error) {
	if callerID == "" {
		return nil, ErrEmptyCallerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if existing, ok := s.sessions[callerID]; ok {
		if now.Sub(existing.UpdatedAt) <= s.ttl {
			return existing, nil
		}
		delete(s.sessions, callerID)
	}

	session := model.NewSession(callerID)
	session.UpdatedAt = now
	s.sessions[callerID] = session
	return session, nil
}

// Save records the session after a handled turn.
func (s *SessionStore) Save(session *model.Session) {
	if session == nil || session.CallerID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.CallerID] = session
}

// Remove drops the caller's session, used once a dialog reaches a
// terminal state.
func (s *SessionStore) Remove(callerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callerID)
}

// Len reports how many sessions are currently held, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
