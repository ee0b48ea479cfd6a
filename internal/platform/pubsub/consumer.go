// Package pubsub contains the Google Cloud Pub/Sub adapter through which
// external collaborators (comment service, connection-request service, and
// friends) push domain notification events into the gateway for fanout.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/addysrii/new-backend-sub001/internal/fanout"
	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// domainEvent is the shape collaborators publish: a target room or user,
// an event name, and an opaque payload forwarded unchanged to clients.
type domainEvent struct {
	Target  string          `json:"target"`
	UserID  string          `json:"userId,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// SubscriptionConfig names the Pub/Sub resources for the domain-event feed.
type SubscriptionConfig struct {
	ProjectID      string
	TopicID        string
	SubscriptionID string
	DLQTopicID     string
}

// EnsureSubscription fetches the domain-events subscription, creating it
// with a dead-letter policy when it does not exist yet.
func EnsureSubscription(ctx context.Context, client *pubsub.Client, cfg SubscriptionConfig, logger zerolog.Logger) (string, error) {
	topicPath := fmt.Sprintf("projects/%s/topics/%s", cfg.ProjectID, cfg.TopicID)
	subPath := fmt.Sprintf("projects/%s/subscriptions/%s", cfg.ProjectID, cfg.SubscriptionID)
	dlqTopicPath := fmt.Sprintf("projects/%s/topics/%s", cfg.ProjectID, cfg.DLQTopicID)

	sub, err := client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: subPath})
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return "", fmt.Errorf("failed to get subscription %s: %w", subPath, err)
		}
		logger.Info().Str("subscription", subPath).Msg("Subscription not found, creating it...")
		sub, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
			Name:               subPath,
			Topic:              topicPath,
			AckDeadlineSeconds: 10,
			DeadLetterPolicy: &pubsubpb.DeadLetterPolicy{
				DeadLetterTopic:     dlqTopicPath,
				MaxDeliveryAttempts: 5,
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to create subscription %s: %w", subPath, err)
		}
	}
	return sub.Name, nil
}

// Consumer pulls collaborator domain events and re-publishes them on the
// fanout broker so whichever process holds the target's sockets delivers.
type Consumer struct {
	subscriber *pubsub.Subscriber
	publisher  *fanout.Publisher
	logger     zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a consumer over an existing subscription.
func NewConsumer(client *pubsub.Client, subscriptionID string, publisher *fanout.Publisher, logger zerolog.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("fanout publisher cannot be nil")
	}
	return &Consumer{
		subscriber: client.Subscriber(subscriptionID),
		publisher:  publisher,
		logger:     logger.With().Str("component", "DomainEventConsumer").Logger(),
	}, nil
}

// Start begins receiving in the background until Stop or ctx cancellation.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.subscriber.Receive(ctx, c.handle)
		if err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("Domain-event receive loop terminated")
		}
	}()

	c.logger.Info().Msg("Domain-event consumer started")
	return nil
}

// Stop cancels the receive loop and waits for in-flight handlers.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// handle validates one collaborator message and hands it to the broker.
// Malformed messages are acked and dropped; retrying cannot fix them.
func (c *Consumer) handle(ctx context.Context, m *pubsub.Message) {
	var event domainEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		c.logger.Warn().Err(err).Msg("Dropping undecodable domain event")
		m.Ack()
		return
	}

	target := event.Target
	if target == "" && event.UserID != "" {
		target = gateway.UserRoom(event.UserID)
	}
	if target == "" || event.Event == "" {
		c.logger.Warn().Msg("Dropping domain event without target or event name")
		m.Ack()
		return
	}

	if err := c.publisher.Forward(ctx, target, event.Event, event.Payload); err != nil {
		c.logger.Error().Err(err).Str("target", target).Str("event", event.Event).
			Msg("Failed to forward domain event to fanout broker")
		m.Nack()
		return
	}
	m.Ack()
}
