// Package app contains the shared logic for starting and stopping the
// gateway's long-running services.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Service is a long-running component with a blocking Start and a graceful
// Shutdown.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Run starts every service, waits for an OS signal or a service failure,
// and then shuts everything down in reverse order with a bounded timeout.
func Run(ctx context.Context, logger zerolog.Logger, services ...Service) {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, svc := range services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			err := svc.Start(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Service failed")
				cancel() // Trigger shutdown of the other services.
			}
		}(svc)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal.")
	case <-ctx.Done():
		logger.Info().Msg("Context cancelled, initiating shutdown.")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Service shutdown failed.")
		}
	}

	wg.Wait()
	logger.Info().Msg("All services shut down gracefully.")
}
