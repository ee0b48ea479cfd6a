// Package fanout contains the Redis-backed implementation of the
// inter-process fanout broker.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/internal/fanout"
)

// RedisBroker implements fanout.Broker over a single Redis pub/sub channel.
// Every gateway process subscribes to the channel and delivers matching
// traffic to its own connections; Redis delivers a process's publishes back
// to its own subscription, so local and remote delivery share one path.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger

	// pubMu serializes publishes from this process. go-redis pools
	// connections, so without it two concurrent publishes could reach
	// the server out of order.
	pubMu sync.Mutex

	mu      sync.RWMutex
	handler fanout.Handler

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBroker creates a broker publishing and subscribing on channel.
func NewRedisBroker(client *redis.Client, channel string, logger zerolog.Logger) (*RedisBroker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if channel == "" {
		return nil, fmt.Errorf("fanout channel cannot be empty")
	}
	return &RedisBroker{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "RedisBroker").Logger(),
	}, nil
}

// Subscribe registers the local delivery handler.
func (b *RedisBroker) Subscribe(handler fanout.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// Start opens the pub/sub subscription and consumes it until ctx ends.
func (b *RedisBroker) Start(ctx context.Context) error {
	b.pubsub = b.client.Subscribe(ctx, b.channel)

	// Force the subscription to be established before returning, so a
	// publish issued right after Start cannot be missed.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to fanout channel %s: %w", b.channel, err)
	}

	ch := b.pubsub.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for m := range ch {
			var msg fanout.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn().Err(err).Msg("Dropping undecodable fanout message")
				continue
			}
			b.dispatch(msg)
		}
	}()

	b.logger.Info().Str("channel", b.channel).Msg("Fanout subscription active")
	return nil
}

// Publish emits the message to all subscribed processes. On transport
// failure the message is handed straight to the local handler so
// same-process members still receive it (degraded local-only fanout).
func (b *RedisBroker) Publish(ctx context.Context, msg fanout.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal fanout message: %w", err)
	}

	b.pubMu.Lock()
	err = b.client.Publish(ctx, b.channel, payload).Err()
	b.pubMu.Unlock()

	if err != nil {
		b.logger.Error().Err(err).Str("target", msg.Target).Str("event", msg.Event).
			Msg("Broker publish failed. Falling back to local-only delivery.")
		b.dispatch(msg)
	}
	return nil
}

// Close tears down the subscription and waits for the consumer loop.
func (b *RedisBroker) Close() error {
	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			return err
		}
	}
	b.wg.Wait()
	return nil
}

func (b *RedisBroker) dispatch(msg fanout.Message) {
	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}
