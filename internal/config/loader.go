package config

import (
	"errors"
	"log"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "gochat"
	envPrefix  = "GOCHAT"
)

// Load reads configuration from defaults, an optional config file and
// GOCHAT_ environment variables. Flags bound to v take precedence over all
// of them. configFile, when set, must exist; otherwise gochat.yaml is looked
// up in the working directory and $HOME/.config/gochat.
func Load(v *viper.Viper, configFile string, l *log.Logger) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("token", "")
	v.SetDefault("token_file", "")
	v.SetDefault("username", "")
	v.SetDefault("display_name", "")
	v.SetDefault("avatar_url", "")
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("heartbeat_interval", DefaultHeartbeatInterval)
	v.SetDefault("heartbeat_grace", DefaultHeartbeatGrace)
	v.SetDefault("debug_addr", "")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("log_file", "")
	v.SetDefault("headless", false)
	v.SetDefault("verbose", false)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/gochat")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
		l.Println("no config file found, using defaults, environment and flags")
	} else {
		l.Println("using config file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
