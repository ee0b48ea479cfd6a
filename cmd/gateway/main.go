package main

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/firestore"
	pubsubv2 "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/addysrii/new-backend-sub001/cmd"
	gatewaysvc "github.com/addysrii/new-backend-sub001/gateway"
	"github.com/addysrii/new-backend-sub001/gateway/config"
	"github.com/addysrii/new-backend-sub001/internal/app"
	"github.com/addysrii/new-backend-sub001/internal/auth"
	"github.com/addysrii/new-backend-sub001/internal/fanout"
	platformfanout "github.com/addysrii/new-backend-sub001/internal/platform/fanout"
	"github.com/addysrii/new-backend-sub001/internal/platform/persistence"
	platformpresence "github.com/addysrii/new-backend-sub001/internal/platform/presence"
	platformpubsub "github.com/addysrii/new-backend-sub001/internal/platform/pubsub"
	"github.com/addysrii/new-backend-sub001/internal/presence"
	"github.com/addysrii/new-backend-sub001/internal/realtime"
	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

func main() {
	// 1. Setup structured logging.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "presence-gateway").Logger()

	// 2. Load the embedded config.yaml.
	cfg, err := cmd.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()
	instanceID := uuid.NewString()

	// 3. Create the fanout broker for this process.
	broker, err := newBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize fanout broker")
	}
	publisher := fanout.NewPublisher(broker, instanceID)

	// 4. Create the collaborator dependencies.
	deps, validator, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}

	tracker := presence.NewTracker(deps.Presence, deps.Counter, publisher, cfg.OfflineGraceWindow, logger)
	defer tracker.Close()

	// 5. Create the domain-event consumer (prod only).
	consumer, err := newDomainEventConsumer(ctx, cfg, publisher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize domain-event consumer")
	}

	// 6. Create the two main services.
	apiService, err := gatewaysvc.New(
		cfg,
		broker,
		publisher,
		consumer,
		newAuthMiddleware(cfg, validator),
		logger.With().Str("component", "ApiService").Logger(),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API service")
	}

	connManager, err := realtime.NewConnectionManager(
		realtime.Config{
			WebSocketPort:      cfg.WebSocketPort,
			MaxConnsPerAddress: cfg.MaxConnsPerAddress,
			HeartbeatInterval:  cfg.HeartbeatInterval,
			MaxPayloadBytes:    cfg.MaxPayloadBytes,
			AllowedOrigins:     cfg.AllowedOrigins,
		},
		validator,
		deps,
		tracker,
		broker,
		publisher,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Connection Manager")
	}

	// 7. Run the application.
	app.Run(ctx, logger, apiService, connManager)
}

// newBroker creates the Redis-backed broker, or an in-process one in local
// run mode.
func newBroker(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (fanout.Broker, error) {
	if cfg.RunMode == "local" {
		logger.Warn().Msg("Running in 'local' mode. Fanout is process-local only.")
		return fanout.NewLocalBroker(), nil
	}

	if cfg.BrokerRedisAddr == "" {
		return nil, fmt.Errorf("broker redis addr is not configured")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.BrokerRedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.BrokerRedisAddr, err)
	}
	logger.Info().Str("addr", cfg.BrokerRedisAddr).Msg("Connected to Redis")
	return platformfanout.NewRedisBroker(rdb, cfg.FanoutChannel, logger)
}

// newDependencies builds the collaborator stores and the session validator.
func newDependencies(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*gateway.ServiceDependencies, realtime.SessionValidator, error) {
	if cfg.RunMode == "local" {
		return cmd.NewFakeDependencies(logger), cmd.FakeValidator{}, nil
	}

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to firestore: %w", err)
	}
	collections := persistence.Collections{
		Users:    cfg.UsersCollection,
		Chats:    cfg.ChatsCollection,
		Messages: cfg.MessagesCollection,
	}

	sessions, err := persistence.NewFirestoreSessionStore(fsClient, collections)
	if err != nil {
		return nil, nil, err
	}
	membership, err := persistence.NewFirestoreMembershipStore(fsClient, collections, logger)
	if err != nil {
		return nil, nil, err
	}
	presenceStore, err := persistence.NewFirestorePresenceStore(fsClient, collections)
	if err != nil {
		return nil, nil, err
	}
	chatStore, err := persistence.NewFirestoreChatStore(fsClient, collections, logger)
	if err != nil {
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.BrokerRedisAddr})
	counter, err := platformpresence.NewRedisSessionCounter(rdb)
	if err != nil {
		return nil, nil, err
	}

	validator, err := auth.NewValidator(cfg.JWTSecret, sessions, logger)
	if err != nil {
		return nil, nil, err
	}

	return &gateway.ServiceDependencies{
		Sessions:   sessions,
		Membership: membership,
		Presence:   presenceStore,
		Chat:       chatStore,
		Counter:    counter,
	}, validator, nil
}

// newDomainEventConsumer subscribes to the collaborator event feed. Local
// run mode has no feed; collaborators use the HTTP push API instead.
func newDomainEventConsumer(ctx context.Context, cfg *config.AppConfig, publisher *fanout.Publisher, logger zerolog.Logger) (*platformpubsub.Consumer, error) {
	if cfg.RunMode == "local" {
		return nil, nil
	}

	psClient, err := pubsubv2.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pubsub: %w", err)
	}

	_, err = platformpubsub.EnsureSubscription(ctx, psClient, platformpubsub.SubscriptionConfig{
		ProjectID:      cfg.ProjectID,
		TopicID:        cfg.DomainEventsTopicID,
		SubscriptionID: cfg.DomainEventsSubscriptionID,
		DLQTopicID:     cfg.DomainEventsTopicDLQID,
	}, logger)
	if err != nil {
		return nil, err
	}

	return platformpubsub.NewConsumer(psClient, cfg.DomainEventsSubscriptionID, publisher, logger)
}

// newAuthMiddleware guards the collaborator API.
func newAuthMiddleware(cfg *config.AppConfig, validator realtime.SessionValidator) func(http.Handler) http.Handler {
	if cfg.RunMode == "local" {
		return auth.NoopMiddleware("local-admin")
	}
	// The prod validator is always the concrete *auth.Validator.
	return auth.Middleware(validator.(*auth.Validator))
}
