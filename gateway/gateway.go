// Package gateway wires the collaborator-facing API server, the fanout
// broker, and the domain-event consumer into one service alongside the
// WebSocket connection manager.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/gateway/config"
	"github.com/addysrii/new-backend-sub001/internal/api"
	"github.com/addysrii/new-backend-sub001/internal/fanout"
	"github.com/addysrii/new-backend-sub001/internal/platform/pubsub"
)

// Wrapper owns the API HTTP server and the gateway's background components:
// the broker subscription and, in prod mode, the domain-event consumer.
type Wrapper struct {
	server     *http.Server
	broker     fanout.Broker
	consumer   *pubsub.Consumer // nil in local run mode
	apiHandler *api.API
	logger     zerolog.Logger
}

// New creates and wires up the API side of the gateway.
func New(
	cfg *config.AppConfig,
	broker fanout.Broker,
	publisher *fanout.Publisher,
	consumer *pubsub.Consumer,
	authMiddleware func(http.Handler) http.Handler,
	logger zerolog.Logger,
) (*Wrapper, error) {
	if broker == nil || publisher == nil {
		return nil, fmt.Errorf("fanout broker and publisher cannot be nil")
	}

	apiHandler := api.NewAPI(publisher, logger.With().Str("component", "API").Logger())

	mux := http.NewServeMux()
	mux.Handle("POST /api/push", authMiddleware(http.HandlerFunc(apiHandler.PushHandler)))
	mux.HandleFunc("GET /healthz", apiHandler.HealthzHandler)

	return &Wrapper{
		server: &http.Server{
			Addr:    ":" + cfg.APIPort,
			Handler: mux,
		},
		broker:     broker,
		consumer:   consumer,
		apiHandler: apiHandler,
		logger:     logger,
	}, nil
}

// Start runs the background components, then blocks serving the API.
func (w *Wrapper) Start(ctx context.Context) error {
	if err := w.broker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start fanout broker: %w", err)
	}
	if w.consumer != nil {
		if err := w.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start domain-event consumer: %w", err)
		}
	}

	w.logger.Info().Str("addr", w.server.Addr).Msg("API server starting...")
	if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops all service components in the correct order.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info().Msg("Shutting down API service components...")
	var finalErr error

	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Error().Err(err).Msg("API server shutdown failed.")
		finalErr = err
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	if err := w.broker.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Fanout broker shutdown failed.")
		finalErr = err
	}

	w.logger.Info().Msg("All API components shut down.")
	return finalErr
}
