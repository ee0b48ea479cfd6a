// Package fanout defines the inter-process publish/subscribe contract used
// to deliver events to connections held by any gateway process, and a
// broker-agnostic publisher helper built on top of it.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is a transient fanout envelope. It is published once, delivered
// to every subscribed process, then discarded.
type Message struct {
	// Target is the room key the message is addressed to. User-directed
	// messages use the user's own room key.
	Target string `json:"target"`
	// Event is the outbound event name delivered to clients.
	Event string `json:"event"`
	// Payload is the already-encoded event payload, forwarded unchanged.
	Payload json.RawMessage `json:"payload"`
	// Origin identifies the publishing process instance.
	Origin string `json:"origin"`
	// ExcludeConn optionally names one connection that must not receive
	// the message (the sender). Connection IDs are globally unique, so
	// the exclusion is safe to evaluate on every process.
	ExcludeConn string `json:"excludeConn,omitempty"`
}

// Handler receives every fanout message visible to this process, including
// the process's own publishes. Local delivery happens only here, so the
// local and remote paths cannot diverge.
type Handler func(msg Message)

// Broker is the inter-process fanout transport.
type Broker interface {
	// Publish emits a message to every subscribed process. Publishes from
	// a single process are serialized, preserving per-target order for a
	// single origin. A transport failure must not prevent delivery to
	// same-process members: implementations fall back to invoking the
	// local handler directly and report the degraded delivery in logs.
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers the local delivery handler. It must be called
	// before Start.
	Subscribe(handler Handler)

	// Start begins consuming fanout traffic until ctx is cancelled.
	Start(ctx context.Context) error

	// Close releases the broker's resources.
	Close() error
}

// Publisher is a small convenience wrapper that encodes event payloads and
// stamps the origin process on every publish.
type Publisher struct {
	broker Broker
	origin string
}

// NewPublisher creates a publisher bound to one broker and origin instance.
func NewPublisher(broker Broker, origin string) *Publisher {
	return &Publisher{broker: broker, origin: origin}
}

// Origin returns the process instance ID stamped on publishes.
func (p *Publisher) Origin() string { return p.origin }

// Broadcast publishes an event to a target room. excludeConn may be empty.
func (p *Publisher) Broadcast(ctx context.Context, target, event string, payload any, excludeConn string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return p.broker.Publish(ctx, Message{
		Target:      target,
		Event:       event,
		Payload:     data,
		Origin:      p.origin,
		ExcludeConn: excludeConn,
	})
}

// Forward publishes an already-encoded payload unchanged, used for domain
// events arriving from external collaborators.
func (p *Publisher) Forward(ctx context.Context, target, event string, payload json.RawMessage) error {
	return p.broker.Publish(ctx, Message{
		Target:  target,
		Event:   event,
		Payload: payload,
		Origin:  p.origin,
	})
}
