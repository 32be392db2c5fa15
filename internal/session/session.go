// Package session keeps in-memory conversation state for the chat API.
//
// Sessions are identified by UUID, hold a bounded list of turns, and expire
// after a TTL of inactivity. Expired entries are swept lazily on creation so
// the store needs no background goroutine.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// entry holds one session's state. The entry mutex guards turns and
// lastAccess; the store mutex only guards the map itself.
type entry struct {
	mu         sync.Mutex
	turns      []Turn
	lastAccess time.Time
}

// Store is a thread-safe in-memory session store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a session store. maxTurns bounds how many exchanges a
// session retains (an exchange is one user turn plus one assistant turn);
// ttl bounds how long an idle session survives.
func NewStore(maxTurns int, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetOrCreate returns the session ID to use for a request. An empty or
// unknown ID yields a fresh session; a known ID refreshes its access time.
func (s *Store) GetOrCreate(id string) string {
	if id != "" {
		s.mu.RLock()
		e, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			e.mu.Lock()
			e.lastAccess = s.now()
			e.mu.Unlock()
			return id
		}
	}

	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &entry{lastAccess: s.now()}
	}
	return id
}

// AppendExchange records a completed question/answer pair. Both turns are
// appended atomically so history never contains a dangling question. The
// oldest pair is evicted once the session exceeds its turn bound.
func (s *Store) AppendExchange(id, question, answer string) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	now := s.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = now
	e.turns = append(e.turns,
		Turn{Role: RoleUser, Content: question, Timestamp: now},
		Turn{Role: RoleAssistant, Content: answer, Timestamp: now},
	)
	for s.maxTurns > 0 && len(e.turns) > 2*s.maxTurns {
		e.turns = e.turns[2:]
	}
}

// History returns a copy of the session's retained turns, oldest first.
// Unknown sessions return nil.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = s.now()
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Clear removes a session. It reports whether the session existed; clearing
// an unknown session is not an error.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// sweepLocked drops sessions idle past the TTL. Caller holds s.mu.
func (s *Store) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		e.mu.Lock()
		expired := e.lastAccess.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}
