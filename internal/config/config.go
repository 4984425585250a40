// Package config holds runtime configuration for the chat server. Values are
// layered: built-in defaults, then an optional JSON config file, then
// CHATRAUM_* environment variables. Command line flags are applied by the
// caller on top of the result.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultHistoryLimit is the number of recent messages replayed to a new
	// joiner.
	DefaultHistoryLimit = 50
	// DefaultMaxMessageLen is the maximum accepted chat message length in
	// characters.
	DefaultMaxMessageLen = 1000
)

// Config holds the chat server configuration
type Config struct {
	// Addr is the listen address for the HTTP/websocket server.
	Addr string `json:"addr" env:"CHATRAUM_ADDR"`
	// DatabasePath is the SQLite database file.
	DatabasePath string `json:"database_path" env:"CHATRAUM_DB_PATH"`
	// HistoryLimit bounds the history replayed on join.
	HistoryLimit int `json:"history_limit" env:"CHATRAUM_HISTORY_LIMIT"`
	// MaxMessageLen bounds accepted chat message length.
	MaxMessageLen int `json:"max_message_len" env:"CHATRAUM_MAX_MESSAGE_LEN"`
	// LogLevel is one of debug, info, warn, error, none.
	LogLevel string `json:"log_level" env:"CHATRAUM_LOG_LEVEL"`
	// LogPath is an optional log file; empty logs to stderr.
	LogPath string `json:"log_path" env:"CHATRAUM_LOG_PATH"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Addr:          ":8080",
		DatabasePath:  "chatraum.db",
		HistoryLimit:  DefaultHistoryLimit,
		MaxMessageLen: DefaultMaxMessageLen,
		LogLevel:      "info",
	}
}

// Load builds the configuration from defaults, the optional JSON file at
// path (skipped when path is empty or missing), and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	if c.MaxMessageLen <= 0 {
		return fmt.Errorf("max message length must be positive, got %d", c.MaxMessageLen)
	}
	return nil
}
