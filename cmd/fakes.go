package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// NewFakeDependencies builds fully in-memory collaborators for local run
// mode: no Firestore, no Redis. Every user is treated as a participant of
// the "lobby" conversation so two local clients can talk to each other.
func NewFakeDependencies(logger zerolog.Logger) *gateway.ServiceDependencies {
	logger.Warn().Msg("Running with faked external dependencies.")
	return &gateway.ServiceDependencies{
		Sessions:   &fakeSessionStore{},
		Membership: &fakeMembershipStore{chats: map[string][]string{"lobby": nil}},
		Presence:   &fakePresenceStore{logger: logger},
		Chat:       &fakeChatStore{},
		Counter:    NewMemorySessionCounter(),
	}
}

// FakeValidator accepts any non-empty credential and uses it verbatim as
// the user ID. Local run mode only.
type FakeValidator struct{}

func (FakeValidator) Validate(_ context.Context, credential string) (gateway.Identity, error) {
	if credential == "" {
		return gateway.Identity{}, gateway.ErrUserNotFound
	}
	return gateway.Identity{UserID: credential}, nil
}

type fakeSessionStore struct{}

func (s *fakeSessionStore) ActiveSessions(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type fakeMembershipStore struct {
	mu    sync.RWMutex
	chats map[string][]string // chat ID -> explicit participants; nil means everyone
}

func (s *fakeMembershipStore) IsParticipant(_ context.Context, chatID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participants, ok := s.chats[chatID]
	if !ok {
		return false, nil
	}
	if participants == nil {
		return true, nil
	}
	for _, p := range participants {
		if p == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeMembershipStore) ParticipantChats(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chats []string
	for chatID, participants := range s.chats {
		if participants == nil {
			chats = append(chats, chatID)
			continue
		}
		for _, p := range participants {
			if p == userID {
				chats = append(chats, chatID)
				break
			}
		}
	}
	return chats, nil
}

type fakePresenceStore struct {
	logger zerolog.Logger
}

func (s *fakePresenceStore) SetPresence(_ context.Context, userID string, online bool, lastActive time.Time) error {
	s.logger.Debug().Str("user", userID).Bool("online", online).Time("lastActive", lastActive).
		Msg("presence write (faked)")
	return nil
}

type fakeChatStore struct{}

func (s *fakeChatStore) MarkRead(_ context.Context, _, _ string, _ []string) error {
	return nil
}

// MemorySessionCounter is an in-process gateway.SessionCounter. Local run
// mode and tests.
type MemorySessionCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemorySessionCounter() *MemorySessionCounter {
	return &MemorySessionCounter{counts: make(map[string]int64)}
}

func (c *MemorySessionCounter) Incr(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID]++
	return c.counts[userID], nil
}

func (c *MemorySessionCounter) Decr(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[userID] > 0 {
		c.counts[userID]--
	}
	count := c.counts[userID]
	if count == 0 {
		delete(c.counts, userID)
	}
	return count, nil
}

func (c *MemorySessionCounter) Count(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID], nil
}
