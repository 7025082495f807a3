package session

import (
	"sort"
	"sync"
	"time"

	"github.com/deckbridge/deckbridge/internal/util"
)

// Session tracks one dashboard sender's conversation with the agent runtime.
type Session struct {
	ID           string
	SenderID     string
	SenderName   string
	CreatedAt    time.Time
	LastActiveAt time.Time
	MessageCount int
}

// Clone returns a copy safe for external mutation.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// InMemoryStore is a volatile session registry keyed by sender. It is safe
// for concurrent access. Each returned session is cloned to prevent external
// mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore constructs an empty in-memory session registry.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Touch returns the sender's session (clone), creating it lazily, and bumps
// its message count and activity timestamp.
func (s *InMemoryStore) Touch(senderID, senderName string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[senderID]
	if !ok {
		sess = s.createSessionLocked(senderID, senderName)
	}
	if senderName != "" {
		sess.SenderName = senderName
	}
	sess.MessageCount++
	sess.LastActiveAt = time.Now()
	return sess.Clone()
}

// Get returns an existing session (clone) or nil.
func (s *InMemoryStore) Get(senderID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[senderID]; ok {
		return sess.Clone()
	}
	return nil
}

// List returns clones of all sessions, most recently active first.
func (s *InMemoryStore) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.After(out[j].LastActiveAt) })
	return out
}

// Len returns the number of tracked sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// createSessionLocked allocates and stores a new session; caller must already
// hold the write lock.
func (s *InMemoryStore) createSessionLocked(senderID, senderName string) *Session {
	now := time.Now()
	sess := &Session{
		ID:           util.NewID(),
		SenderID:     senderID,
		SenderName:   senderName,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	s.sessions[senderID] = sess
	return sess
}
