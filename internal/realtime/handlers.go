package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

func (cm *ConnectionManager) registerHandlers() {
	cm.router.Handle(gateway.EventJoinChat, cm.handleJoinChat)
	cm.router.Handle(gateway.EventTyping, cm.handleTyping)
	cm.router.Handle(gateway.EventReadMessages, cm.handleReadMessages)
	cm.router.Handle(gateway.EventUpdatePresence, cm.handleUpdatePresence)
	cm.router.Handle(gateway.EventCallSignal, cm.handleCallSignal)
}

// handleJoinChat authorizes an explicit room join against the membership
// store. Unlike the other handlers, the outcome is always surfaced to the
// client: joining is the one room operation a client must be able to
// observe failing.
func (cm *ConnectionManager) handleJoinChat(ctx context.Context, c *Connection, data json.RawMessage) {
	var p gateway.JoinChatPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" {
		c.logger.Debug().Msg("Dropping malformed join_chat payload")
		return
	}

	ok, err := cm.membership.IsParticipant(ctx, p.ChatID, c.Identity.UserID)
	if err != nil {
		cm.logger.Error().Err(err).Str("chat", p.ChatID).Str("user", c.Identity.UserID).
			Msg("Membership lookup failed")
		c.Send(gateway.EventError, gateway.ErrorEvent{Message: "internal error"})
		return
	}
	if !ok {
		c.Send(gateway.EventJoinChatResult, gateway.JoinChatResult{Success: false, ChatID: p.ChatID})
		return
	}

	cm.registry.Join(c.ID, gateway.ConversationRoom(p.ChatID))
	c.Send(gateway.EventJoinChatResult, gateway.JoinChatResult{Success: true, ChatID: p.ChatID})
}

// handleTyping broadcasts a typing indicator to the other members of the
// conversation. The sender is excluded.
func (cm *ConnectionManager) handleTyping(ctx context.Context, c *Connection, data json.RawMessage) {
	var p gateway.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" {
		c.logger.Debug().Msg("Dropping malformed typing payload")
		return
	}

	room := gateway.ConversationRoom(p.ChatID)
	if !cm.registry.IsMember(c.ID, room) {
		return
	}

	cm.broadcast(ctx, room, gateway.EventUserTyping, gateway.UserTyping{
		ChatID:   p.ChatID,
		UserID:   c.Identity.UserID,
		IsTyping: p.IsTyping,
	}, c.ID)
}

// handleReadMessages persists the read receipt in the chat store (skipping
// the reader's own messages) and broadcasts it. A store failure is logged
// and the broadcast still goes out: receipts are best-effort, and local
// room state never rolls back on a collaborator failure.
func (cm *ConnectionManager) handleReadMessages(ctx context.Context, c *Connection, data json.RawMessage) {
	var p gateway.ReadMessagesPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" || len(p.MessageIDs) == 0 {
		c.logger.Debug().Msg("Dropping malformed read_messages payload")
		return
	}

	room := gateway.ConversationRoom(p.ChatID)
	if !cm.registry.IsMember(c.ID, room) {
		return
	}

	if err := cm.chat.MarkRead(ctx, p.ChatID, c.Identity.UserID, p.MessageIDs); err != nil {
		cm.logger.Error().Err(err).Str("chat", p.ChatID).Str("user", c.Identity.UserID).
			Msg("Failed to persist read receipt")
	}

	cm.broadcast(ctx, room, gateway.EventMessagesRead, gateway.MessagesRead{
		ChatID:     p.ChatID,
		MessageIDs: p.MessageIDs,
		UserID:     c.Identity.UserID,
		Timestamp:  time.Now().UTC(),
	}, c.ID)
}

// handleUpdatePresence records the client-reported status and announces it
// to every room the connection currently belongs to.
func (cm *ConnectionManager) handleUpdatePresence(ctx context.Context, c *Connection, data json.RawMessage) {
	var p gateway.UpdatePresencePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Status == "" {
		c.logger.Debug().Msg("Dropping malformed update_presence payload")
		return
	}

	lastSeen := time.Now().UTC()
	if p.LastSeen != nil {
		lastSeen = *p.LastSeen
	}
	cm.tracker.UpdateStatus(ctx, c.Identity.UserID, p.Status, lastSeen)

	update := gateway.UserPresenceUpdate{
		UserID:   c.Identity.UserID,
		Status:   p.Status,
		LastSeen: lastSeen,
	}
	for _, room := range cm.registry.RoomsOf(c.ID) {
		cm.broadcast(ctx, room, gateway.EventUserPresence, update, c.ID)
	}
}

// handleCallSignal relays a call-signaling payload to one specific
// participant via their user room, never the whole conversation.
func (cm *ConnectionManager) handleCallSignal(ctx context.Context, c *Connection, data json.RawMessage) {
	var p gateway.CallSignalPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" || p.To == "" || len(p.Signal) == 0 {
		c.logger.Debug().Msg("Dropping malformed call_signal payload")
		return
	}

	if !cm.registry.IsMember(c.ID, gateway.ConversationRoom(p.ChatID)) {
		return
	}

	cm.broadcast(ctx, gateway.UserRoom(p.To), gateway.EventCallSignal, gateway.CallSignalEvent{
		ChatID: p.ChatID,
		Signal: p.Signal,
		From:   c.Identity.UserID,
	}, c.ID)
}
