package config

import (
	"fmt"
	"time"
)

// --- YAML-Specific Structs ---

type YamlRedisConfig struct {
	Addr string `yaml:"addr"`
}

type YamlBrokerConfig struct {
	Redis   YamlRedisConfig `yaml:"redis"`
	Channel string          `yaml:"channel"`
}

type YamlFirestoreConfig struct {
	UsersCollection    string `yaml:"users_collection"`
	ChatsCollection    string `yaml:"chats_collection"`
	MessagesCollection string `yaml:"messages_collection"`
}

type YamlDomainEventsConfig struct {
	TopicID        string `yaml:"topic_id"`
	SubscriptionID string `yaml:"subscription_id"`
	TopicDLQID     string `yaml:"topic_dlq_id"`
}

type YamlHandshakeConfig struct {
	MaxConnsPerAddress  int      `yaml:"max_conns_per_address"`
	HeartbeatSeconds    int      `yaml:"heartbeat_seconds"`
	OfflineGraceSeconds int      `yaml:"offline_grace_seconds"`
	MaxPayloadBytes     int64    `yaml:"max_payload_bytes"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// YamlConfig defines the structure for unmarshaling the embedded
// config.yaml file.
type YamlConfig struct {
	ProjectID     string                 `yaml:"project_id"`
	RunMode       string                 `yaml:"run_mode"`
	APIPort       string                 `yaml:"api_port"`
	WebSocketPort string                 `yaml:"websocket_port"`
	JWTSecret     string                 `yaml:"jwt_secret"`
	Broker        YamlBrokerConfig       `yaml:"broker"`
	Firestore     YamlFirestoreConfig    `yaml:"firestore"`
	DomainEvents  YamlDomainEventsConfig `yaml:"domain_events"`
	Handshake     YamlHandshakeConfig    `yaml:"handshake"`
}

// Documented defaults for the handshake policy.
const (
	defaultMaxConnsPerAddress = 10
	defaultHeartbeatSeconds   = 30
	defaultGraceSeconds       = 10
	defaultMaxPayloadBytes    = 1 << 20
	defaultFanoutChannel      = "gateway:fanout"
)

// NewConfigFromYaml converts the raw unmarshaled data into a clean
// AppConfig, applying the documented defaults for unset handshake knobs.
func NewConfigFromYaml(yamlCfg *YamlConfig) (*AppConfig, error) {
	if yamlCfg.APIPort == "" || yamlCfg.WebSocketPort == "" {
		return nil, fmt.Errorf("api_port and websocket_port must be configured")
	}

	appCfg := &AppConfig{
		ProjectID:     yamlCfg.ProjectID,
		RunMode:       yamlCfg.RunMode,
		APIPort:       yamlCfg.APIPort,
		WebSocketPort: yamlCfg.WebSocketPort,
		JWTSecret:     yamlCfg.JWTSecret,

		BrokerRedisAddr: yamlCfg.Broker.Redis.Addr,
		FanoutChannel:   yamlCfg.Broker.Channel,

		UsersCollection:    yamlCfg.Firestore.UsersCollection,
		ChatsCollection:    yamlCfg.Firestore.ChatsCollection,
		MessagesCollection: yamlCfg.Firestore.MessagesCollection,

		DomainEventsTopicID:        yamlCfg.DomainEvents.TopicID,
		DomainEventsSubscriptionID: yamlCfg.DomainEvents.SubscriptionID,
		DomainEventsTopicDLQID:     yamlCfg.DomainEvents.TopicDLQID,

		MaxConnsPerAddress: yamlCfg.Handshake.MaxConnsPerAddress,
		HeartbeatInterval:  time.Duration(yamlCfg.Handshake.HeartbeatSeconds) * time.Second,
		OfflineGraceWindow: time.Duration(yamlCfg.Handshake.OfflineGraceSeconds) * time.Second,
		MaxPayloadBytes:    yamlCfg.Handshake.MaxPayloadBytes,
		AllowedOrigins:     yamlCfg.Handshake.AllowedOrigins,
	}

	if appCfg.FanoutChannel == "" {
		appCfg.FanoutChannel = defaultFanoutChannel
	}
	if appCfg.MaxConnsPerAddress <= 0 {
		appCfg.MaxConnsPerAddress = defaultMaxConnsPerAddress
	}
	if appCfg.HeartbeatInterval <= 0 {
		appCfg.HeartbeatInterval = defaultHeartbeatSeconds * time.Second
	}
	if appCfg.OfflineGraceWindow <= 0 {
		appCfg.OfflineGraceWindow = defaultGraceSeconds * time.Second
	}
	if appCfg.MaxPayloadBytes <= 0 {
		appCfg.MaxPayloadBytes = defaultMaxPayloadBytes
	}

	return appCfg, nil
}
