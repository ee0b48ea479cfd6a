package config

import "time"

// AppConfig is the canonical, validated configuration object used
// throughout the gateway.
type AppConfig struct {
	ProjectID     string
	RunMode       string
	APIPort       string
	WebSocketPort string

	JWTSecret string

	BrokerRedisAddr string
	FanoutChannel   string

	UsersCollection    string
	ChatsCollection    string
	MessagesCollection string

	DomainEventsTopicID        string
	DomainEventsSubscriptionID string
	DomainEventsTopicDLQID     string

	MaxConnsPerAddress int
	HeartbeatInterval  time.Duration
	OfflineGraceWindow time.Duration
	MaxPayloadBytes    int64
	AllowedOrigins     []string
}
