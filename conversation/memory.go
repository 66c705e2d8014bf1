// Package conversation keeps per-session turn history. Sessions are owned by
// the caller and passed into the agent per call; the store only maps session
// IDs to their logs for the lifetime of the process.
package conversation

import (
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role string
	Text string
	At   time.Time
}

// Session is an append-only ordered log of turns.
type Session struct {
	ID    string
	turns []Turn
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}

func (s *Session) Append(role, text string) {
	s.turns = append(s.turns, Turn{Role: role, Text: text, At: time.Now()})
}

func (s *Session) Len() int { return len(s.turns) }

// Turns returns a copy of the full history in order.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Recent returns the last n turns in order, fewer when the log is shorter.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 || len(s.turns) == 0 {
		return nil
	}
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// Registry hands out sessions by ID. Concurrent sessions never share a log;
// each session's memory belongs to its own turn sequence.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		session = NewSession(id)
		r.sessions[id] = session
	}
	return session
}
