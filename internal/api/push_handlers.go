// Package api defines the HTTP handlers external collaborators use to push
// domain events (comment added, connection accepted, and so on) through the
// gateway to whichever process holds the recipient's sockets.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/internal/fanout"
	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// API holds the dependencies for the stateless HTTP handlers.
type API struct {
	publisher *fanout.Publisher
	logger    zerolog.Logger
}

// NewAPI creates a new, stateless API handler.
func NewAPI(publisher *fanout.Publisher, logger zerolog.Logger) *API {
	return &API{
		publisher: publisher,
		logger:    logger,
	}
}

type pushRequest struct {
	Target  string          `json:"target"`
	UserID  string          `json:"userId,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// PushHandler accepts a domain event and publishes it on the fanout broker.
// The recipient may or may not currently hold an open connection anywhere;
// delivery is at-least-once to whoever is connected when it lands.
func (a *API) PushHandler(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to decode push request")
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target := req.Target
	if target == "" && req.UserID != "" {
		target = gateway.UserRoom(req.UserID)
	}
	if target == "" || req.Event == "" {
		writeJSONError(w, http.StatusBadRequest, "target and event are required")
		return
	}

	log := a.logger.With().Str("target", target).Str("event", req.Event).Logger()
	if err := a.publisher.Forward(r.Context(), target, req.Event, req.Payload); err != nil {
		log.Error().Err(err).Msg("Failed to publish domain event")
		writeJSONError(w, http.StatusInternalServerError, "failed to publish event")
		return
	}

	log.Debug().Msg("Domain event accepted for fanout")
	w.WriteHeader(http.StatusAccepted)
}

// HealthzHandler reports process liveness.
func (a *API) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
