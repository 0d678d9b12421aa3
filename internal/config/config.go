package config

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config is the top-level maxbridge configuration.
type Config struct {
	// Max channel defaults plus named-account overrides
	Max MaxConfig `json:"max" mapstructure:"max" validate:"required"`

	// Host runtime the bridge forwards inbound messages to
	Host HostConfig `json:"host" mapstructure:"host"`

	// Webhook sink server (shared across accounts)
	Webhook WebhookServerConfig `json:"webhook" mapstructure:"webhook"`

	// Metrics exposition endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// MaxConfig holds channel-level defaults for the Max integration. Named
// accounts inherit these values and may override any of them.
type MaxConfig struct {
	Enabled     bool                     `json:"enabled" mapstructure:"enabled"`
	BotToken    string                   `json:"bot_token" mapstructure:"bot_token"`
	BotTokenEnv string                   `json:"bot_token_env" mapstructure:"bot_token_env"`
	BaseURL     string                   `json:"base_url" mapstructure:"base_url"`
	DMPolicy    string                   `json:"dm_policy" mapstructure:"dm_policy" validate:"omitempty,oneof=pairing allowlist open disabled"` // pairing, allowlist, open, disabled
	AllowFrom   []string                 `json:"allow_from" mapstructure:"allow_from"`
	Groups      map[string]GroupConfig   `json:"groups" mapstructure:"groups"`
	GroupPolicy string                   `json:"group_policy" mapstructure:"group_policy" validate:"omitempty,oneof=allowlist open disabled"` // allowlist, open, disabled
	Webhook     AccountWebhookConfig     `json:"webhook" mapstructure:"webhook"`
	MediaMaxMB  int                      `json:"media_max_mb" mapstructure:"media_max_mb"`
	Accounts    map[string]AccountConfig `json:"accounts" mapstructure:"accounts"`
}

// GroupConfig is the per-group policy entry. The map key is the chat id, or
// "*" for a wildcard entry.
type GroupConfig struct {
	RequireMention *bool `json:"require_mention,omitempty" mapstructure:"require_mention"`
}

// AccountWebhookConfig selects webhook mode for an account when URL is set.
type AccountWebhookConfig struct {
	URL    string `json:"url,omitempty" mapstructure:"url" validate:"omitempty,url"`
	Path   string `json:"path,omitempty" mapstructure:"path"`
	Secret string `json:"secret,omitempty" mapstructure:"secret"`
}

// AccountConfig overrides channel defaults for one named account. Pointer
// fields distinguish "unset, inherit" from an explicit value.
type AccountConfig struct {
	Enabled     *bool                  `json:"enabled,omitempty" mapstructure:"enabled"`
	BotToken    string                 `json:"bot_token,omitempty" mapstructure:"bot_token"`
	BotTokenEnv string                 `json:"bot_token_env,omitempty" mapstructure:"bot_token_env"`
	BaseURL     string                 `json:"base_url,omitempty" mapstructure:"base_url"`
	DMPolicy    string                 `json:"dm_policy,omitempty" mapstructure:"dm_policy" validate:"omitempty,oneof=pairing allowlist open disabled"`
	AllowFrom   []string               `json:"allow_from,omitempty" mapstructure:"allow_from"`
	Groups      map[string]GroupConfig `json:"groups,omitempty" mapstructure:"groups"`
	GroupPolicy string                 `json:"group_policy,omitempty" mapstructure:"group_policy" validate:"omitempty,oneof=allowlist open disabled"`
	Webhook     *AccountWebhookConfig  `json:"webhook,omitempty" mapstructure:"webhook"`
	MediaMaxMB  *int                   `json:"media_max_mb,omitempty" mapstructure:"media_max_mb"`
}

// HostConfig points at the agent runtime consuming inbound envelopes.
type HostConfig struct {
	Endpoint  string `json:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	AgentID   string `json:"agent_id" mapstructure:"agent_id"`
	ChunkMode string `json:"chunk_mode" mapstructure:"chunk_mode" validate:"omitempty,oneof=length newline"` // length, newline
}

// WebhookServerConfig configures the shared inbound HTTP sink.
type WebhookServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Max: MaxConfig{
			Enabled:     true,
			DMPolicy:    "pairing",
			GroupPolicy: "allowlist",
			MediaMaxMB:  20,
		},
		Host: HostConfig{
			AgentID:   "default",
			ChunkMode: "newline",
		},
		Webhook: WebhookServerConfig{
			Host: "0.0.0.0",
			Port: 8085,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Max.Enabled {
		if _, err := c.ResolveAccount(DefaultAccountID); err != nil {
			return err
		}
		for id := range c.Max.Accounts {
			if _, err := c.ResolveAccount(id); err != nil {
				return err
			}
		}
	}

	for key := range c.Max.Groups {
		if err := validateGroupKey(key); err != nil {
			return err
		}
	}
	for id, account := range c.Max.Accounts {
		for key := range account.Groups {
			if err := validateGroupKey(key); err != nil {
				return fmt.Errorf("account %s: %w", id, err)
			}
		}
	}

	return nil
}

func validateGroupKey(key string) error {
	if key == Wildcard {
		return nil
	}
	for _, r := range key {
		if (r < '0' || r > '9') && r != '-' {
			return fmt.Errorf("group key %q must be a chat id or %q", key, Wildcard)
		}
	}
	return nil
}
