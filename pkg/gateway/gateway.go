// Package gateway consolidates the core domain types and collaborator
// contracts for the presence and event-fanout gateway. It defines the
// contract between the gateway and the external record stores it talks to.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned by collaborator stores when the referenced
// user has no record in the persistent store.
var ErrUserNotFound = errors.New("user not found")

// Identity is the authenticated principal attached to a connection after a
// successful handshake.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// UserRoom returns the room key for direct delivery to a user, joined by
// every connection that user holds.
func UserRoom(userID string) string { return "user:" + userID }

// ConversationRoom returns the room key for a chat/thread.
func ConversationRoom(chatID string) string { return "conversation:" + chatID }

// PresenceRecord mirrors the persistent store's per-user presence document.
type PresenceRecord struct {
	Online     bool      `json:"online"`
	LastActive time.Time `json:"lastActive"`
}

// SessionStore confirms a credential against the external user-account store.
type SessionStore interface {
	// ActiveSessions returns the credentials currently listed as live
	// sessions for the user. It returns ErrUserNotFound when the user
	// does not exist.
	ActiveSessions(ctx context.Context, userID string) ([]string, error)
}

// MembershipStore answers conversation-participation questions from the
// external chat-membership store.
type MembershipStore interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	// ParticipantChats lists the IDs of every conversation the user
	// currently participates in.
	ParticipantChats(ctx context.Context, userID string) ([]string, error)
}

// PresenceStore persists the per-user online flag and last-active timestamp.
// Writes are best-effort; callers log failures and continue.
type PresenceStore interface {
	SetPresence(ctx context.Context, userID string, online bool, lastActive time.Time) error
}

// ChatStore applies read receipts against the external chat store.
type ChatStore interface {
	// MarkRead records that readerID has read the listed messages in the
	// given chat. Messages authored by the reader are skipped.
	MarkRead(ctx context.Context, chatID, readerID string, messageIDs []string) error
}

// SessionCounter tracks the number of live connections a user holds across
// every gateway process. It backs the multi-device presence guard.
type SessionCounter interface {
	Incr(ctx context.Context, userID string) (int64, error)
	Decr(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context, userID string) (int64, error)
}

// ServiceDependencies holds the external collaborators the gateway needs to
// operate. This struct is used for dependency injection.
type ServiceDependencies struct {
	Sessions   SessionStore
	Membership MembershipStore
	Presence   PresenceStore
	Chat       ChatStore
	Counter    SessionCounter
}
