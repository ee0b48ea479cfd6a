// Package realtime manages the gateway's live WebSocket connections: the
// connect-time handshake (rate limit, then authentication), room
// membership, inbound event dispatch, and fanout delivery to local sockets.
// It runs its own dedicated HTTP server.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/internal/auth"
	"github.com/addysrii/new-backend-sub001/internal/fanout"
	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// SessionValidator confirms a bearer credential during the handshake.
type SessionValidator interface {
	Validate(ctx context.Context, credential string) (gateway.Identity, error)
}

// PresenceTracker receives connection lifecycle transitions.
type PresenceTracker interface {
	Connected(ctx context.Context, userID string)
	Disconnected(ctx context.Context, userID string, rooms []string)
	Touch(ctx context.Context, userID string)
	UpdateStatus(ctx context.Context, userID, status string, lastSeen time.Time)
}

// Config carries the connection manager's handshake policy.
type Config struct {
	WebSocketPort      string
	MaxConnsPerAddress int
	HeartbeatInterval  time.Duration
	MaxPayloadBytes    int64
	AllowedOrigins     []string
}

// ConnectionManager owns every WebSocket connection accepted by this
// process and the registry of rooms they joined.
type ConnectionManager struct {
	server   *http.Server
	upgrader websocket.Upgrader

	validator  SessionValidator
	membership gateway.MembershipStore
	chat       gateway.ChatStore
	tracker    PresenceTracker

	broker    fanout.Broker
	publisher *fanout.Publisher

	limiter  *ConnectionLimiter
	registry *RoomRegistry
	router   *Router

	connections sync.Map // connection ID -> *Connection

	heartbeat  time.Duration
	maxPayload int64
	instanceID string
	logger     zerolog.Logger
}

// NewConnectionManager creates and wires up the WebSocket side of the
// gateway. The broker's local delivery handler is registered here, so every
// fanout message this process sees, including its own publishes, flows
// through the single deliver path.
func NewConnectionManager(
	cfg Config,
	validator SessionValidator,
	deps *gateway.ServiceDependencies,
	tracker PresenceTracker,
	broker fanout.Broker,
	publisher *fanout.Publisher,
	logger zerolog.Logger,
) (*ConnectionManager, error) {
	if validator == nil {
		return nil, fmt.Errorf("session validator cannot be nil")
	}
	if deps == nil || deps.Membership == nil || deps.Chat == nil {
		return nil, fmt.Errorf("service dependencies are incomplete")
	}
	if tracker == nil {
		return nil, fmt.Errorf("presence tracker cannot be nil")
	}
	if broker == nil || publisher == nil {
		return nil, fmt.Errorf("fanout broker and publisher cannot be nil")
	}

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	maxPayload := cfg.MaxPayloadBytes
	if maxPayload <= 0 {
		maxPayload = 1 << 20
	}

	instanceID := publisher.Origin()
	cmLogger := logger.With().Str("component", "ConnectionManager").Str("instance", instanceID).Logger()

	cm := &ConnectionManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		validator:  validator,
		membership: deps.Membership,
		chat:       deps.Chat,
		tracker:    tracker,
		broker:     broker,
		publisher:  publisher,
		limiter:    NewConnectionLimiter(cfg.MaxConnsPerAddress),
		registry:   NewRoomRegistry(),
		router:     NewRouter(cmLogger),
		heartbeat:  heartbeat,
		maxPayload: maxPayload,
		instanceID: instanceID,
		logger:     cmLogger,
	}
	cm.registerHandlers()
	broker.Subscribe(cm.deliver)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", cm.connectHandler)
	cm.server = &http.Server{
		Addr:    ":" + cfg.WebSocketPort,
		Handler: mux,
	}

	return cm, nil
}

// Handler exposes the WebSocket endpoint for embedding in another server.
func (cm *ConnectionManager) Handler() http.Handler {
	return cm.server.Handler
}

// Start runs the HTTP server hosting the WebSocket endpoint.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	cm.logger.Info().Str("addr", cm.server.Addr).Msg("WebSocket server starting...")
	if err := cm.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and closes the live ones.
func (cm *ConnectionManager) Shutdown(ctx context.Context) error {
	cm.logger.Info().Msg("Shutting down WebSocket service...")
	var finalErr error

	if err := cm.server.Shutdown(ctx); err != nil {
		cm.logger.Error().Err(err).Msg("WebSocket server shutdown failed.")
		finalErr = err
	}

	cm.connections.Range(func(_, value any) bool {
		value.(*Connection).close()
		return true
	})

	cm.logger.Info().Msg("WebSocket service shut down.")
	return finalErr
}

// connectHandler runs the handshake and, on success, services the
// connection until it closes. Ordering matters: the rate limiter is cheap
// and runs before any external-store lookup, so unauthenticated flooding
// stays cheap to reject. A rejection after a successful Admit triggers the
// matching Release, leaving the counter exactly as it was.
func (cm *ConnectionManager) connectHandler(w http.ResponseWriter, r *http.Request) {
	addr := sourceAddr(r)

	if !cm.limiter.Admit(addr) {
		cm.logger.Warn().Str("addr", addr).Msg("Connection rejected: per-address limit reached")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	identity, err := cm.validator.Validate(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		cm.limiter.Release(addr)
		reason := "unauthorized"
		if auth.IsAuthFailure(err) {
			reason = err.Error()
		} else {
			cm.logger.Error().Err(err).Str("addr", addr).Msg("Session validation failed")
		}
		http.Error(w, reason, http.StatusUnauthorized)
		return
	}

	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.limiter.Release(addr)
		cm.logger.Error().Err(err).Msg("Failed to upgrade connection.")
		return
	}

	connID := uuid.NewString()
	conn := newConnection(connID, identity, addr, ws,
		cm.logger.With().Str("conn", connID).Str("user", identity.UserID).Logger())
	cm.serve(r.Context(), conn)
}

// serve registers the connection, auto-joins its default rooms, and runs
// the read loop until disconnect. The deferred teardown runs on every exit
// path: voluntary close, idle timeout, or forced termination.
func (cm *ConnectionManager) serve(ctx context.Context, conn *Connection) {
	cm.connections.Store(conn.ID, conn)
	go conn.writePump(cm.pingPeriod())

	defer cm.teardown(conn)

	conn.Send(gateway.EventAuthenticateResult, gateway.AuthenticateResult{Success: true})
	cm.joinDefaultRooms(ctx, conn)
	cm.tracker.Connected(ctx, conn.Identity.UserID)

	cm.logger.Info().Str("user", conn.Identity.UserID).Str("conn", conn.ID).Msg("User connected via WebSocket.")
	cm.readLoop(ctx, conn)
}

// readLoop services inbound frames one at a time, preserving per-connection
// event order end-to-end. The heartbeat read deadline forcibly closes
// connections that stop sending pongs. Any inbound traffic, pongs included,
// refreshes the user's last-active timestamp, throttled to one store write
// per heartbeat interval.
func (cm *ConnectionManager) readLoop(ctx context.Context, conn *Connection) {
	pongWait := cm.heartbeat
	conn.ws.SetReadLimit(cm.maxPayload)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))

	// Both the pong handler and the frame loop run on this goroutine, so
	// lastTouch needs no locking.
	lastTouch := time.Now()
	touch := func() {
		if time.Since(lastTouch) < pongWait {
			return
		}
		lastTouch = time.Now()
		cm.tracker.Touch(ctx, conn.Identity.UserID)
	}

	conn.ws.SetPongHandler(func(string) error {
		touch()
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		touch()
		cm.router.Dispatch(ctx, conn, raw)
	}
}

// joinDefaultRooms joins the connection to its own user room plus one room
// per conversation the user participates in. A membership-store failure
// degrades to the user room only; it never fails the connection.
func (cm *ConnectionManager) joinDefaultRooms(ctx context.Context, conn *Connection) {
	userID := conn.Identity.UserID
	cm.registry.Join(conn.ID, gateway.UserRoom(userID))

	chats, err := cm.membership.ParticipantChats(ctx, userID)
	if err != nil {
		cm.logger.Error().Err(err).Str("user", userID).Msg("Failed to load conversation memberships")
		return
	}
	for _, chatID := range chats {
		cm.registry.Join(conn.ID, gateway.ConversationRoom(chatID))
	}
}

// teardown is the single disconnect path.
func (cm *ConnectionManager) teardown(conn *Connection) {
	conn.close()
	cm.connections.Delete(conn.ID)

	rooms := cm.registry.LeaveAll(conn.ID)
	cm.limiter.Release(conn.RemoteAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cm.tracker.Disconnected(ctx, conn.Identity.UserID, rooms)

	cm.logger.Info().Str("user", conn.Identity.UserID).Str("conn", conn.ID).Msg("User disconnected.")
}

// deliver is the broker subscription handler: for each fanout message it
// writes to every local connection joined to the target, minus the excluded
// sender. Local and remote-originated messages share this one path.
func (cm *ConnectionManager) deliver(msg fanout.Message) {
	for _, connID := range cm.registry.Members(msg.Target) {
		if connID == msg.ExcludeConn {
			continue
		}
		if v, ok := cm.connections.Load(connID); ok {
			v.(*Connection).Send(msg.Event, json.RawMessage(msg.Payload))
		}
	}
}

// broadcast publishes an event through the fanout broker. Transport
// degradation is the broker's concern; only encoding failures surface here.
func (cm *ConnectionManager) broadcast(ctx context.Context, target, event string, payload any, excludeConn string) {
	if err := cm.publisher.Broadcast(ctx, target, event, payload, excludeConn); err != nil {
		cm.logger.Error().Err(err).Str("target", target).Str("event", event).Msg("Failed to publish event")
	}
}

func (cm *ConnectionManager) pingPeriod() time.Duration {
	return cm.heartbeat * 9 / 10
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := allowedSet[r.Header.Get("Origin")]
		return ok
	}
}

// sourceAddr extracts the client host from the request, without the port,
// so reconnects from the same machine share one rate-limit counter.
func sourceAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
