// Package session keeps per-session conversation history for the relay.
//
// Sessions are created implicitly by the first Append and live until they
// are cleared, evicted, or the process exits. There is no persistence.
package session

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Messages are never modified after
// they are appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary describes a non-empty session.
type Summary struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the conversation log used by the pipeline.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a message, creating the session on first use.
	Append(sessionID string, role Role, content string) Message

	// History returns every message of a session in append order.
	// Unknown sessions yield an empty slice.
	History(sessionID string) []Message

	// Recent returns the last n messages in append order.
	Recent(sessionID string, n int) []Message

	// Count returns the number of messages held for a session.
	Count(sessionID string) int

	// Clear removes a session and reports whether it existed.
	Clear(sessionID string) bool

	// List returns summaries of all sessions holding at least one message,
	// most recently updated first.
	List() []Summary
}
