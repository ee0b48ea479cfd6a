package gateway

import (
	"encoding/json"
	"time"
)

// Inbound event names (client -> server).
const (
	EventJoinChat       = "join_chat"
	EventTyping         = "typing"
	EventReadMessages   = "read_messages"
	EventUpdatePresence = "update_presence"
	EventCallSignal     = "call_signal"
)

// Outbound event names (server -> client).
const (
	EventAuthenticateResult = "authenticate_result"
	EventJoinChatResult     = "join_chat_result"
	EventError              = "error"
	EventUserTyping         = "user_typing"
	EventMessagesRead       = "messages_read"
	EventUserPresence       = "user_presence_update"
	EventUserOffline        = "user_offline"
)

// Frame is the wire envelope for every event exchanged over a connection.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// --- Inbound payloads ---

type JoinChatPayload struct {
	ChatID string `json:"chatId"`
}

type TypingPayload struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

type ReadMessagesPayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
}

type UpdatePresencePayload struct {
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type CallSignalPayload struct {
	ChatID string          `json:"chatId"`
	Signal json.RawMessage `json:"signal"`
	To     string          `json:"to"`
}

// --- Outbound payloads ---

type AuthenticateResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type JoinChatResult struct {
	Success bool   `json:"success"`
	ChatID  string `json:"chatId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type UserTyping struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessagesRead struct {
	ChatID     string    `json:"chatId"`
	MessageIDs []string  `json:"messageIds"`
	UserID     string    `json:"userId"`
	Timestamp  time.Time `json:"timestamp"`
}

type UserPresenceUpdate struct {
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type UserOffline struct {
	UserID     string    `json:"userId"`
	LastActive time.Time `json:"lastActive"`
}

// CallSignalEvent is relayed to exactly one recipient via their user room.
type CallSignalEvent struct {
	ChatID string          `json:"chatId"`
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from"`
}
