package realtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// handlerFunc processes one inbound event for one connection. Handlers for
// a single connection run one-at-a-time in arrival order (the connection's
// read loop is the only caller); handlers for different connections run in
// parallel.
type handlerFunc func(ctx context.Context, c *Connection, data json.RawMessage)

// Router dispatches inbound client frames to their handlers by event name.
// Malformed or unknown frames are dropped silently: a single bad event must
// never crash a handler or cost the client its connection.
type Router struct {
	handlers map[string]handlerFunc
	logger   zerolog.Logger
}

// NewRouter creates an empty dispatch table.
func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		handlers: make(map[string]handlerFunc),
		logger:   logger.With().Str("component", "EventRouter").Logger(),
	}
}

// Handle registers a handler for an inbound event name.
func (r *Router) Handle(event string, h handlerFunc) {
	r.handlers[event] = h
}

// Dispatch decodes one wire frame and invokes its handler.
func (r *Router) Dispatch(ctx context.Context, c *Connection, raw []byte) {
	var frame gateway.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		r.logger.Debug().Err(err).Str("conn", c.ID).Msg("Dropping undecodable frame")
		return
	}

	h, ok := r.handlers[frame.Event]
	if !ok {
		r.logger.Debug().Str("conn", c.ID).Str("event", frame.Event).Msg("Dropping unknown event")
		return
	}
	h(ctx, c, frame.Data)
}
