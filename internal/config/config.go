package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultServerURL         = "wss://127.0.0.1:3000/ws"
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultHeartbeatGrace    = 70 * time.Second
)

type Config struct {
	ServerURL          string        `mapstructure:"server_url"`
	Token              string        `mapstructure:"token"`
	TokenFile          string        `mapstructure:"token_file"`
	Username           string        `mapstructure:"username"`
	DisplayName        string        `mapstructure:"display_name"`
	AvatarURL          string        `mapstructure:"avatar_url"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatGrace     time.Duration `mapstructure:"heartbeat_grace"`
	DebugAddr          string        `mapstructure:"debug_addr"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
	LogFile            string        `mapstructure:"log_file"`
	Headless           bool          `mapstructure:"headless"`
	Verbose            bool          `mapstructure:"verbose"`
}

// NewConfig returns a validated config with default heartbeat timings.
func NewConfig(serverURL, token, tokenFile string) (*Config, error) {
	cfg := &Config{
		ServerURL:         serverURL,
		Token:             token,
		TokenFile:         tokenFile,
		HeartbeatInterval: DefaultHeartbeatInterval,
		HeartbeatGrace:    DefaultHeartbeatGrace,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server URL must use ws or wss, got %q", u.Scheme)
	}
	if c.Token == "" && c.TokenFile == "" {
		return fmt.Errorf("token or token file must be set")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.HeartbeatGrace <= 0 {
		return fmt.Errorf("heartbeat grace must be positive")
	}
	return nil
}
