// Package presence maintains each user's online/offline flag and last-active
// timestamp in the persistent store, guarded against multi-device flapping
// by a cross-process live-connection counter and a reconnect grace window.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/internal/fanout"
	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// Tracker owns all presence transitions. Store writes are fire-and-forget:
// a failed write is logged and never blocks connection teardown.
type Tracker struct {
	store     gateway.PresenceStore
	counter   gateway.SessionCounter
	publisher *fanout.Publisher
	grace     time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewTracker creates a tracker. grace is the window during which a
// reconnecting user is not treated as a fresh offline->online transition.
func NewTracker(
	store gateway.PresenceStore,
	counter gateway.SessionCounter,
	publisher *fanout.Publisher,
	grace time.Duration,
	logger zerolog.Logger,
) *Tracker {
	return &Tracker{
		store:     store,
		counter:   counter,
		publisher: publisher,
		grace:     grace,
		logger:    logger.With().Str("component", "PresenceTracker").Logger(),
		pending:   make(map[string]*time.Timer),
	}
}

// Connected records a new live connection for the user. The first
// connection anywhere flips the user online; any connection cancels a
// pending offline transition from a recent drop.
func (t *Tracker) Connected(ctx context.Context, userID string) {
	t.cancelPending(userID)

	count, err := t.counter.Incr(ctx, userID)
	if err != nil {
		t.logger.Error().Err(err).Str("user", userID).Msg("Failed to increment session count")
		count = 1
	}

	if count == 1 {
		t.markOnline(ctx, userID)
	}
}

// Disconnected records a dropped connection. If it was the user's last
// connection on any process, the offline transition is scheduled after the
// grace window and the rooms the user belonged to are notified.
func (t *Tracker) Disconnected(ctx context.Context, userID string, rooms []string) {
	count, err := t.counter.Decr(ctx, userID)
	if err != nil {
		t.logger.Error().Err(err).Str("user", userID).Msg("Failed to decrement session count")
		return
	}
	if count > 0 {
		// Another device is still connected; presence stays online.
		return
	}

	t.schedule(userID, rooms)
}

// Touch refreshes the user's last-active timestamp.
func (t *Tracker) Touch(ctx context.Context, userID string) {
	if err := t.store.SetPresence(ctx, userID, true, time.Now().UTC()); err != nil {
		t.logger.Error().Err(err).Str("user", userID).Msg("Failed to touch presence")
	}
}

// UpdateStatus applies a client-reported presence status.
func (t *Tracker) UpdateStatus(ctx context.Context, userID, status string, lastSeen time.Time) {
	online := status != "offline"
	if err := t.store.SetPresence(ctx, userID, online, lastSeen); err != nil {
		t.logger.Error().Err(err).Str("user", userID).Str("status", status).
			Msg("Failed to persist presence status")
	}
}

// Close cancels all pending offline timers.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for user, timer := range t.pending {
		timer.Stop()
		delete(t.pending, user)
	}
}

func (t *Tracker) schedule(userID string, rooms []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.pending[userID]; ok {
		timer.Stop()
	}
	t.pending[userID] = time.AfterFunc(t.grace, func() {
		t.finalizeOffline(userID, rooms)
	})
}

// finalizeOffline runs after the grace window. The counter is re-checked so
// a reconnect on another process during the window keeps the user online.
func (t *Tracker) finalizeOffline(userID string, rooms []string) {
	t.mu.Lock()
	delete(t.pending, userID)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := t.counter.Count(ctx, userID)
	if err != nil {
		t.logger.Error().Err(err).Str("user", userID).Msg("Failed to read session count, skipping offline transition")
		return
	}
	if count > 0 {
		t.logger.Debug().Str("user", userID).Msg("User reconnected within grace window")
		return
	}

	lastActive := time.Now().UTC()
	if err := t.store.SetPresence(ctx, userID, false, lastActive); err != nil {
		t.logger.Error().Err(err).Str("user", userID).Msg("Failed to persist offline presence")
	}

	payload := gateway.UserOffline{UserID: userID, LastActive: lastActive}
	for _, room := range rooms {
		if err := t.publisher.Broadcast(ctx, room, gateway.EventUserOffline, payload, ""); err != nil {
			t.logger.Error().Err(err).Str("user", userID).Str("room", room).
				Msg("Failed to broadcast offline event")
		}
	}
	t.logger.Info().Str("user", userID).Msg("User is now offline")
}

func (t *Tracker) cancelPending(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.pending[userID]; ok {
		timer.Stop()
		delete(t.pending, userID)
	}
}

func (t *Tracker) markOnline(ctx context.Context, userID string) {
	if err := t.store.SetPresence(ctx, userID, true, time.Now().UTC()); err != nil {
		t.logger.Error().Err(err).Str("user", userID).Msg("Failed to persist online presence")
	}
}
