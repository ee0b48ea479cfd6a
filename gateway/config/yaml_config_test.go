package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addysrii/new-backend-sub001/gateway/config"
)

func TestNewConfigFromYaml(t *testing.T) {
	t.Run("Success - maps all fields correctly from YAML struct", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:     "yaml-project",
			RunMode:       "yaml-mode",
			APIPort:       "8080",
			WebSocketPort: "8081",
			JWTSecret:     "yaml-secret",
			Broker: config.YamlBrokerConfig{
				Redis:   config.YamlRedisConfig{Addr: "yaml-redis:6379"},
				Channel: "yaml-channel",
			},
			Firestore: config.YamlFirestoreConfig{
				UsersCollection:    "yaml-users",
				ChatsCollection:    "yaml-chats",
				MessagesCollection: "yaml-messages",
			},
			DomainEvents: config.YamlDomainEventsConfig{
				TopicID:        "yaml-events-topic",
				SubscriptionID: "yaml-events-sub",
				TopicDLQID:     "yaml-events-dlq",
			},
			Handshake: config.YamlHandshakeConfig{
				MaxConnsPerAddress:  3,
				HeartbeatSeconds:    45,
				OfflineGraceSeconds: 5,
				MaxPayloadBytes:     2048,
				AllowedOrigins:      []string{"http://yaml-origin.com"},
			},
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, "yaml-mode", cfg.RunMode)
		assert.Equal(t, "8080", cfg.APIPort)
		assert.Equal(t, "8081", cfg.WebSocketPort)
		assert.Equal(t, "yaml-secret", cfg.JWTSecret)
		assert.Equal(t, "yaml-redis:6379", cfg.BrokerRedisAddr)
		assert.Equal(t, "yaml-channel", cfg.FanoutChannel)
		assert.Equal(t, "yaml-users", cfg.UsersCollection)
		assert.Equal(t, "yaml-chats", cfg.ChatsCollection)
		assert.Equal(t, "yaml-messages", cfg.MessagesCollection)
		assert.Equal(t, "yaml-events-topic", cfg.DomainEventsTopicID)
		assert.Equal(t, "yaml-events-sub", cfg.DomainEventsSubscriptionID)
		assert.Equal(t, "yaml-events-dlq", cfg.DomainEventsTopicDLQID)
		assert.Equal(t, 3, cfg.MaxConnsPerAddress)
		assert.Equal(t, 45*time.Second, cfg.HeartbeatInterval)
		assert.Equal(t, 5*time.Second, cfg.OfflineGraceWindow)
		assert.Equal(t, int64(2048), cfg.MaxPayloadBytes)
		assert.Equal(t, []string{"http://yaml-origin.com"}, cfg.AllowedOrigins)
	})

	t.Run("Defaults - unset handshake knobs fall back to documented values", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			APIPort:       "8080",
			WebSocketPort: "8081",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg)

		require.NoError(t, err)
		assert.Equal(t, "gateway:fanout", cfg.FanoutChannel)
		assert.Equal(t, 10, cfg.MaxConnsPerAddress)
		assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
		assert.Equal(t, 10*time.Second, cfg.OfflineGraceWindow)
		assert.Equal(t, int64(1<<20), cfg.MaxPayloadBytes)
	})

	t.Run("Failure - missing ports", func(t *testing.T) {
		_, err := config.NewConfigFromYaml(&config.YamlConfig{APIPort: "8080"})
		assert.Error(t, err)

		_, err = config.NewConfigFromYaml(&config.YamlConfig{WebSocketPort: "8081"})
		assert.Error(t, err)
	})
}
