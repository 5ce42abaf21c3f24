// Package config loads and validates modelwatch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// StreamConfig governs per-subscriber buffering and keepalives.
type StreamConfig struct {
	ChannelBuffer    int `mapstructure:"channel_buffer"`
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

// FetcherConfig governs the download worker pool.
type FetcherConfig struct {
	Concurrency    int    `mapstructure:"concurrency"`
	QueueDepth     int    `mapstructure:"queue_depth"`
	DestDir        string `mapstructure:"dest_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MODELWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("stream.channel_buffer", 10)
	v.SetDefault("stream.heartbeat_seconds", 1)
	v.SetDefault("fetcher.concurrency", 2)
	v.SetDefault("fetcher.queue_depth", 16)
	v.SetDefault("fetcher.dest_dir", "models")
	v.SetDefault("fetcher.timeout_seconds", 0)
	v.SetDefault("fetcher.user_agent", "modelwatch/0.1")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Stream.ChannelBuffer <= 0 {
		return fmt.Errorf("stream.channel_buffer must be > 0")
	}
	if c.Stream.HeartbeatSeconds <= 0 {
		return fmt.Errorf("stream.heartbeat_seconds must be > 0")
	}
	if c.Fetcher.Concurrency <= 0 {
		return fmt.Errorf("fetcher.concurrency must be > 0")
	}
	if c.Fetcher.QueueDepth <= 0 {
		return fmt.Errorf("fetcher.queue_depth must be > 0")
	}
	if c.Fetcher.DestDir == "" {
		return fmt.Errorf("fetcher.dest_dir must be set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// Heartbeat converts the configured heartbeat interval into a duration.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.Stream.HeartbeatSeconds) * time.Second
}

// FetchTimeout converts the per-download timeout into a duration; zero means
// no deadline, since large model archives can take arbitrarily long.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}
