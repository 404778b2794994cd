package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"
)

// Config holds settings for the relay gateway and for party peers
type Config struct {
	NATS     NATSConfig    `yaml:"nats"`
	Gateway  GatewayConfig `yaml:"gateway"`
	Party    PartyConfig   `yaml:"party"`
	Draw     DrawConfig    `yaml:"draw"`
	LogLevel string        `yaml:"log_level"`
}

// NATSConfig holds settings for the NATS connection backing room relays
type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"` // rooms publish on <prefix>.<code>
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// GatewayConfig holds settings for the websocket relay gateway
type GatewayConfig struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// PartyConfig holds protocol timings for a party peer
type PartyConfig struct {
	PresenceTTL       time.Duration `yaml:"presence_ttl"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HistorySize       int           `yaml:"history_size"`
	GatewayURL        string        `yaml:"gateway_url"`
}

// DrawConfig holds settings for the external selection service
type DrawConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the standard configuration values
func Default() Config {
	return Config{
		NATS: NATSConfig{
			URL:           nats.DefaultURL,
			SubjectPrefix: "party.rooms",
			MaxReconnects: -1, // Infinite
			ReconnectWait: 2 * time.Second,
		},
		Gateway: GatewayConfig{
			Port:           "8081",
			AllowedOrigins: []string{"*"},
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 16 * 1024,
		},
		Party: PartyConfig{
			PresenceTTL:       2 * time.Minute,
			HeartbeatInterval: 15 * time.Second,
			HistorySize:       10,
			GatewayURL:        "ws://localhost:8081/ws/party",
		},
		Draw: DrawConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path on top of the defaults (an empty path skips the file)
// and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.Gateway.Port = getEnv("GATEWAY_PORT", c.Gateway.Port)
	if origins := os.Getenv("GATEWAY_ALLOWED_ORIGINS"); origins != "" {
		c.Gateway.AllowedOrigins = strings.Split(origins, ",")
	}
	c.Party.PresenceTTL = getEnvAsDuration("PARTY_TTL", c.Party.PresenceTTL)
	c.Party.HeartbeatInterval = getEnvAsDuration("PARTY_HEARTBEAT", c.Party.HeartbeatInterval)
	c.Party.HistorySize = getEnvAsInt("PARTY_HISTORY_SIZE", c.Party.HistorySize)
	c.Party.GatewayURL = getEnv("PARTY_GATEWAY_URL", c.Party.GatewayURL)
	c.Draw.BaseURL = getEnv("DRAW_URL", c.Draw.BaseURL)
	c.Draw.APIKey = getEnv("DRAW_API_KEY", c.Draw.APIKey)
	c.Draw.Timeout = getEnvAsDuration("DRAW_TIMEOUT", c.Draw.Timeout)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks the configuration for values the protocol cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.NATS.SubjectPrefix == "" {
		errs = append(errs, errors.New("nats.subject_prefix is required"))
	}
	if c.Party.PresenceTTL <= 0 {
		errs = append(errs, errors.New("party.presence_ttl must be positive"))
	}
	if c.Party.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("party.heartbeat_interval must be positive"))
	}
	// a peer must beat at least once per TTL window or it drops out of its own room
	if c.Party.HeartbeatInterval >= c.Party.PresenceTTL {
		errs = append(errs, fmt.Errorf("party.heartbeat_interval (%s) must be shorter than party.presence_ttl (%s)",
			c.Party.HeartbeatInterval, c.Party.PresenceTTL))
	}
	if c.Party.HistorySize < 1 {
		errs = append(errs, errors.New("party.history_size must be at least 1"))
	}
	if c.Draw.Timeout <= 0 {
		errs = append(errs, errors.New("draw.timeout must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
