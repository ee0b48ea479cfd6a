package fanout

import (
	"context"
	"sync"
)

// LocalBroker is an in-process Broker used for local run mode and tests.
// It dispatches every publish synchronously to all registered handlers,
// which also makes it a faithful stand-in for multi-process fanout when
// several connection managers subscribe to one shared instance.
type LocalBroker struct {
	mu       sync.Mutex
	handlers []Handler
}

// NewLocalBroker creates an empty in-process broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

// Publish delivers the message to every subscribed handler in order. The
// lock serializes publishes, so per-target ordering matches the Broker
// contract.
func (b *LocalBroker) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.handlers {
		h(msg)
	}
	return nil
}

// Subscribe adds a delivery handler.
func (b *LocalBroker) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Start is a no-op; delivery happens inline on Publish.
func (b *LocalBroker) Start(_ context.Context) error { return nil }

// Close is a no-op.
func (b *LocalBroker) Close() error { return nil }
