package session

import (
	"sort"
	"sync"
	"time"
)

// Default limits for MemoryStore.
const (
	DefaultMaxMessages = 200
	DefaultMaxSessions = 1000
)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithMaxMessages caps messages kept per session; the oldest are dropped.
// Zero disables the cap.
func WithMaxMessages(n int) Option {
	return func(s *MemoryStore) { s.maxMessages = n }
}

// WithMaxSessions caps the number of sessions; the least recently updated
// session is evicted when a new one would exceed it. Zero disables the cap.
func WithMaxSessions(n int) Option {
	return func(s *MemoryStore) { s.maxSessions = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

type conversation struct {
	messages []Message
}

// first is the oldest message still held, so it moves forward after a trim.
func (c *conversation) first() time.Time {
	return c.messages[0].Timestamp
}

func (c *conversation) last() time.Time {
	return c.messages[len(c.messages)-1].Timestamp
}

// MemoryStore is an in-process Store backed by a map guarded by a RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*conversation

	maxMessages int
	maxSessions int
	now         func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:    make(map[string]*conversation),
		maxMessages: DefaultMaxMessages,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a message to the session, creating it if needed.
func (s *MemoryStore) Append(sessionID string, role Role, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	conv, ok := s.sessions[sessionID]
	if !ok {
		s.evictLocked()
		conv = &conversation{}
		s.sessions[sessionID] = conv
	} else if len(conv.messages) > 0 && !ts.After(conv.last()) {
		// keep per-session order strict even with a coarse clock
		ts = conv.last().Add(time.Nanosecond)
	}

	msg := Message{Role: role, Content: content, Timestamp: ts}
	conv.messages = append(conv.messages, msg)

	if s.maxMessages > 0 && len(conv.messages) > s.maxMessages {
		trimmed := make([]Message, s.maxMessages)
		copy(trimmed, conv.messages[len(conv.messages)-s.maxMessages:])
		conv.messages = trimmed
	}
	return msg
}

// evictLocked drops the least recently updated session when at capacity.
func (s *MemoryStore) evictLocked() {
	if s.maxSessions <= 0 || len(s.sessions) < s.maxSessions {
		return
	}
	var (
		oldestID string
		oldest   time.Time
	)
	for id, conv := range s.sessions {
		if oldestID == "" || conv.last().Before(oldest) {
			oldestID, oldest = id, conv.last()
		}
	}
	delete(s.sessions, oldestID)
}

// History returns a copy of all messages in the session.
func (s *MemoryStore) History(sessionID string) []Message {
	return s.Recent(sessionID, -1)
}

// Recent returns a copy of the last n messages. A negative n returns all.
func (s *MemoryStore) Recent(sessionID string, n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.sessions[sessionID]
	if !ok || n == 0 {
		return []Message{}
	}
	msgs := conv.messages
	if n > 0 && n < len(msgs) {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Count returns the number of messages held for the session.
func (s *MemoryStore) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.sessions[sessionID]; ok {
		return len(conv.messages)
	}
	return 0
}

// Clear removes the session.
func (s *MemoryStore) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// List returns summaries of non-empty sessions, newest activity first.
func (s *MemoryStore) List() []Summary {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.sessions))
	for id, conv := range s.sessions {
		if len(conv.messages) == 0 {
			continue
		}
		out = append(out, Summary{
			SessionID:    id,
			MessageCount: len(conv.messages),
			CreatedAt:    conv.first(),
			UpdatedAt:    conv.last(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Verify MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)
