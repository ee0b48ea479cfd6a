package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addysrii/new-backend-sub001/internal/fanout"
	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// recordingStore captures SetPresence writes.
type recordingStore struct {
	mu     sync.Mutex
	writes []presenceWrite
}

type presenceWrite struct {
	userID string
	online bool
}

func (s *recordingStore) SetPresence(_ context.Context, userID string, online bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, presenceWrite{userID: userID, online: online})
	return nil
}

func (s *recordingStore) all() []presenceWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]presenceWrite(nil), s.writes...)
}

func (s *recordingStore) last() (presenceWrite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return presenceWrite{}, false
	}
	return s.writes[len(s.writes)-1], true
}

// memoryCounter is an in-process gateway.SessionCounter.
type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{counts: make(map[string]int64)}
}

func (c *memoryCounter) Incr(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID]++
	return c.counts[userID], nil
}

func (c *memoryCounter) Decr(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[userID] > 0 {
		c.counts[userID]--
	}
	return c.counts[userID], nil
}

func (c *memoryCounter) Count(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID], nil
}

// capture subscribes to the broker and collects published fanout messages.
func capture(broker *fanout.LocalBroker) func() []fanout.Message {
	var mu sync.Mutex
	var msgs []fanout.Message
	broker.Subscribe(func(msg fanout.Message) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, msg)
	})
	return func() []fanout.Message {
		mu.Lock()
		defer mu.Unlock()
		return append([]fanout.Message(nil), msgs...)
	}
}

func newTestTracker(t *testing.T, grace time.Duration) (*Tracker, *recordingStore, *memoryCounter, func() []fanout.Message) {
	t.Helper()
	store := &recordingStore{}
	counter := newMemoryCounter()
	broker := fanout.NewLocalBroker()
	published := capture(broker)
	tracker := NewTracker(store, counter, fanout.NewPublisher(broker, "test-instance"), grace, zerolog.Nop())
	t.Cleanup(tracker.Close)
	return tracker, store, counter, published
}

func TestTracker_FirstConnectionMarksOnline(t *testing.T) {
	tracker, store, _, _ := newTestTracker(t, time.Hour)
	ctx := context.Background()

	tracker.Connected(ctx, "user-a")

	last, ok := store.last()
	require.True(t, ok)
	assert.Equal(t, presenceWrite{userID: "user-a", online: true}, last)
}

func TestTracker_SecondDeviceDoesNotRewriteOnline(t *testing.T) {
	tracker, store, _, _ := newTestTracker(t, time.Hour)
	ctx := context.Background()

	tracker.Connected(ctx, "user-a")
	tracker.Connected(ctx, "user-a")

	assert.Len(t, store.all(), 1, "Only the first connection flips the user online")
}

func TestTracker_LastDisconnectGoesOfflineAfterGrace(t *testing.T) {
	tracker, store, _, published := newTestTracker(t, 20*time.Millisecond)
	ctx := context.Background()
	rooms := []string{gateway.UserRoom("user-a"), gateway.ConversationRoom("chat-1")}

	tracker.Connected(ctx, "user-a")
	tracker.Disconnected(ctx, "user-a", rooms)

	require.Eventually(t, func() bool {
		last, ok := store.last()
		return ok && !last.online
	}, 2*time.Second, 5*time.Millisecond, "User never transitioned offline")

	msgs := published()
	require.Len(t, msgs, 2)
	targets := []string{msgs[0].Target, msgs[1].Target}
	assert.ElementsMatch(t, rooms, targets)
	for _, msg := range msgs {
		assert.Equal(t, gateway.EventUserOffline, msg.Event)
		var offline gateway.UserOffline
		require.NoError(t, json.Unmarshal(msg.Payload, &offline))
		assert.Equal(t, "user-a", offline.UserID)
		assert.False(t, offline.LastActive.IsZero())
	}
}

func TestTracker_DisconnectWithRemainingDeviceStaysOnline(t *testing.T) {
	tracker, store, _, published := newTestTracker(t, 10*time.Millisecond)
	ctx := context.Background()

	tracker.Connected(ctx, "user-a")
	tracker.Connected(ctx, "user-a")
	tracker.Disconnected(ctx, "user-a", []string{gateway.UserRoom("user-a")})

	time.Sleep(50 * time.Millisecond)

	last, ok := store.last()
	require.True(t, ok)
	assert.True(t, last.online, "User with a live device must stay online")
	assert.Empty(t, published())
}

func TestTracker_ReconnectWithinGraceCancelsOffline(t *testing.T) {
	tracker, store, _, published := newTestTracker(t, 100*time.Millisecond)
	ctx := context.Background()

	tracker.Connected(ctx, "user-a")
	tracker.Disconnected(ctx, "user-a", []string{gateway.UserRoom("user-a")})
	tracker.Connected(ctx, "user-a")

	time.Sleep(250 * time.Millisecond)

	last, ok := store.last()
	require.True(t, ok)
	assert.True(t, last.online, "Reconnect within the grace window must not go offline")
	assert.Empty(t, published())
}

func TestTracker_ReconnectOnOtherProcessWithinGrace(t *testing.T) {
	// The timer fires here, but the shared counter shows a live connection
	// accepted by another process, so the offline transition is skipped.
	tracker, store, counter, published := newTestTracker(t, 20*time.Millisecond)
	ctx := context.Background()

	tracker.Connected(ctx, "user-a")
	tracker.Disconnected(ctx, "user-a", []string{gateway.UserRoom("user-a")})
	_, err := counter.Incr(ctx, "user-a")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	last, ok := store.last()
	require.True(t, ok)
	assert.True(t, last.online)
	assert.Empty(t, published())
}

func TestTracker_TouchKeepsUserOnline(t *testing.T) {
	tracker, store, _, _ := newTestTracker(t, time.Hour)
	ctx := context.Background()

	tracker.Connected(ctx, "user-a")
	tracker.Touch(ctx, "user-a")

	writes := store.all()
	require.Len(t, writes, 2, "Touch must refresh the presence record")
	assert.Equal(t, presenceWrite{userID: "user-a", online: true}, writes[1])
}

func TestTracker_UpdateStatus(t *testing.T) {
	tracker, store, _, _ := newTestTracker(t, time.Hour)
	ctx := context.Background()

	tracker.UpdateStatus(ctx, "user-a", "away", time.Now().UTC())
	last, ok := store.last()
	require.True(t, ok)
	assert.True(t, last.online, "Any status except offline keeps the user online")

	tracker.UpdateStatus(ctx, "user-a", "offline", time.Now().UTC())
	last, ok = store.last()
	require.True(t, ok)
	assert.False(t, last.online)
}
