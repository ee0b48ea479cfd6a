package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer bounds the per-connection outbound queue. A client that
	// cannot drain it is disconnected rather than allowed to stall fanout.
	sendBuffer = 64
)

// Connection is one accepted transport session. It is owned exclusively by
// the process that accepted it and destroyed on transport close.
type Connection struct {
	ID         string
	Identity   gateway.Identity
	RemoteAddr string
	CreatedAt  time.Time

	ws     *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(id string, identity gateway.Identity, remoteAddr string, ws *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		ID:         id,
		Identity:   identity,
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now().UTC(),
		ws:         ws,
		send:       make(chan []byte, sendBuffer),
		logger:     logger,
		closed:     make(chan struct{}),
	}
}

// Send encodes an event frame and queues it for delivery. A full queue or a
// closed connection drops the frame and reports false; the write pump will
// already be tearing the connection down in the full-queue case.
func (c *Connection) Send(event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal outbound payload")
		return false
	}
	frame, err := json.Marshal(gateway.Frame{Event: event, Data: data})
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal outbound frame")
		return false
	}

	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Str("event", event).Msg("Outbound queue full, closing slow connection")
		c.close()
		return false
	}
}

// writePump serializes all writes to the socket: queued frames plus the
// heartbeat pings the idle-timeout policy depends on.
func (c *Connection) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// close shuts the connection down at most once. The read loop observes the
// socket close and runs the full disconnect path.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}
