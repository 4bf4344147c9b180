// Package config handles configuration management for the hostwire engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for a hostwire host process.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Components  ComponentsConfig  `mapstructure:"components"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

// ServerConfig selects and addresses the transport a Component System binds
// its peer to. The engine does not implement the transport itself (spec's
// concrete transports remain an external collaborator) — these fields only
// tell an embedder which one the caller should construct and connect.
type ServerConfig struct {
	Transport string `mapstructure:"transport"` // "worker", "websocket", or "memory"
	Addr      string `mapstructure:"addr"`      // listen/connect address, meaning depends on Transport
}

// ComponentsConfig controls which named components are preloaded eagerly
// instead of lazily on first guest reference.
type ComponentsConfig struct {
	Preload []string `mapstructure:"preload"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// LimitsConfig bounds per-peer resource usage. Only MaxPendingCalls is
// applied (engine.New passes it to the peer); CallTimeoutSecs and
// MaxQueuedOnSend are loaded and validated, but nothing in this module
// enforces them.
type LimitsConfig struct {
	MaxPendingCalls int `mapstructure:"max_pending_calls"`  // outstanding Call()s a peer may have in flight
	CallTimeoutSecs int `mapstructure:"call_timeout_secs"`  // default Call() deadline; not applied
	MaxQueuedOnSend int `mapstructure:"max_queued_on_send"` // queued-before-connect message cap; not applied
}

// DiagnosticsConfig controls the lifecycle-event persistence sink.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.hostwire")
		v.AddConfigPath("/etc/hostwire")
	}

	v.SetEnvPrefix("HOSTWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", DefaultTransport)
	v.SetDefault("server.addr", "")

	v.SetDefault("components.preload", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("limits.max_pending_calls", DefaultMaxPendingCalls)
	v.SetDefault("limits.call_timeout_secs", DefaultCallTimeoutSecs)
	v.SetDefault("limits.max_queued_on_send", DefaultMaxQueuedOnSend)

	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.db_path", DefaultDiagnosticsDBPath)
}

// GetConfigDir returns the user config directory for hostwire.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".hostwire"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
