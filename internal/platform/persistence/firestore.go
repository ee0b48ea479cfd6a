// Package persistence contains the Firestore-backed implementations of the
// gateway's collaborator stores: user sessions, chat membership, presence
// records, and read receipts. The store is the single source of truth for
// membership and presence; this gateway only issues idempotent reads and
// writes against it.
package persistence

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// Collections holds the configurable collection names.
type Collections struct {
	Users    string
	Chats    string
	Messages string
}

type userDoc struct {
	Sessions []string `firestore:"sessions"`
}

type chatDoc struct {
	Participants []string `firestore:"participants"`
}

type messageDoc struct {
	ChatID   string `firestore:"chatId"`
	SenderID string `firestore:"senderId"`
}

// FirestoreSessionStore implements gateway.SessionStore.
type FirestoreSessionStore struct {
	client      *firestore.Client
	collections Collections
}

// NewFirestoreSessionStore is the constructor for the session store.
func NewFirestoreSessionStore(client *firestore.Client, collections Collections) (*FirestoreSessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &FirestoreSessionStore{client: client, collections: collections}, nil
}

// ActiveSessions returns the user's live session credentials, or
// gateway.ErrUserNotFound when there is no such user record.
func (s *FirestoreSessionStore) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	snap, err := s.client.Collection(s.collections.Users).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, gateway.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %s: %w", userID, err)
	}
	return doc.Sessions, nil
}

// FirestoreMembershipStore implements gateway.MembershipStore.
type FirestoreMembershipStore struct {
	client      *firestore.Client
	collections Collections
	logger      zerolog.Logger
}

// NewFirestoreMembershipStore is the constructor for the membership store.
func NewFirestoreMembershipStore(client *firestore.Client, collections Collections, logger zerolog.Logger) (*FirestoreMembershipStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &FirestoreMembershipStore{
		client:      client,
		collections: collections,
		logger:      logger.With().Str("component", "MembershipStore").Logger(),
	}, nil
}

// IsParticipant reports whether userID participates in chatID. A missing
// chat is not an error, just a negative answer.
func (s *FirestoreMembershipStore) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	snap, err := s.client.Collection(s.collections.Chats).Doc(chatID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch chat %s: %w", chatID, err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return false, fmt.Errorf("failed to unmarshal chat %s: %w", chatID, err)
	}
	for _, p := range doc.Participants {
		if p == userID {
			return true, nil
		}
	}
	return false, nil
}

// ParticipantChats lists every conversation the user participates in.
func (s *FirestoreMembershipStore) ParticipantChats(ctx context.Context, userID string) ([]string, error) {
	query := s.client.Collection(s.collections.Chats).
		Where("participants", "array-contains", userID)

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query chats for user %s: %w", userID, err)
	}

	chatIDs := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		chatIDs = append(chatIDs, snap.Ref.ID)
	}
	return chatIDs, nil
}

// FirestorePresenceStore implements gateway.PresenceStore.
type FirestorePresenceStore struct {
	client      *firestore.Client
	collections Collections
}

// NewFirestorePresenceStore is the constructor for the presence store.
func NewFirestorePresenceStore(client *firestore.Client, collections Collections) (*FirestorePresenceStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &FirestorePresenceStore{client: client, collections: collections}, nil
}

// SetPresence merges the online flag and last-active timestamp into the
// user's record, creating it if missing.
func (s *FirestorePresenceStore) SetPresence(ctx context.Context, userID string, online bool, lastActive time.Time) error {
	_, err := s.client.Collection(s.collections.Users).Doc(userID).Set(ctx, map[string]any{
		"online":     online,
		"lastActive": lastActive,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to write presence for user %s: %w", userID, err)
	}
	return nil
}

// FirestoreChatStore implements gateway.ChatStore.
type FirestoreChatStore struct {
	client      *firestore.Client
	collections Collections
	logger      zerolog.Logger
}

// NewFirestoreChatStore is the constructor for the chat store.
func NewFirestoreChatStore(client *firestore.Client, collections Collections, logger zerolog.Logger) (*FirestoreChatStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &FirestoreChatStore{
		client:      client,
		collections: collections,
		logger:      logger.With().Str("component", "ChatStore").Logger(),
	}, nil
}

// MarkRead records the reader on each listed message's readBy set. Messages
// that are missing, belong to a different chat, or were authored by the
// reader are skipped; a single bad ID never fails the whole batch.
func (s *FirestoreChatStore) MarkRead(ctx context.Context, chatID, readerID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	log := s.logger.With().Str("chat", chatID).Str("reader", readerID).Logger()
	var firstErr error

	for _, msgID := range messageIDs {
		ref := s.client.Collection(s.collections.Messages).Doc(msgID)

		snap, err := ref.Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				log.Warn().Str("message", msgID).Msg("Skipping unknown message in read receipt")
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			log.Warn().Err(err).Str("message", msgID).Msg("Skipping undecodable message in read receipt")
			continue
		}
		if doc.ChatID != chatID || doc.SenderID == readerID {
			continue
		}

		_, err = ref.Update(ctx, []firestore.Update{
			{Path: "readBy", Value: firestore.ArrayUnion(readerID)},
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return fmt.Errorf("failed to mark one or more messages read: %w", firstErr)
	}
	return nil
}
