// Package config loads server settings from an optional YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the server process.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// RedisAddr enables the Redis-backed message store when set.
	// Empty keeps history in process memory.
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`

	// MaxRoomMessages caps the retained history per room.
	MaxRoomMessages int `yaml:"max_room_messages" env:"MAX_ROOM_MESSAGES"`

	// MaxAttachmentBytes caps a single attachment's declared size.
	MaxAttachmentBytes int64 `yaml:"max_attachment_bytes" env:"MAX_ATTACHMENT_BYTES"`

	// HistoryPageSize is the number of messages per history page.
	HistoryPageSize int `yaml:"history_page_size" env:"HISTORY_PAGE_SIZE"`

	// ConnectsPerMinute limits WebSocket upgrades per client IP.
	// Zero disables the limiter.
	ConnectsPerMinute int `yaml:"connects_per_minute" env:"CONNECTS_PER_MINUTE"`

	// MaxConns caps concurrent WebSocket connections. Zero means
	// unlimited.
	MaxConns int `yaml:"max_conns" env:"MAX_CONNS"`

	// LogLevel is an hclog level name (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		MaxRoomMessages:    500,
		MaxAttachmentBytes: 2 << 20,
		HistoryPageSize:    25,
		ConnectsPerMinute:  30,
		LogLevel:           "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.MaxRoomMessages <= 0 {
		return fmt.Errorf("max_room_messages must be positive, got %d", c.MaxRoomMessages)
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("max_attachment_bytes must be positive, got %d", c.MaxAttachmentBytes)
	}
	if c.HistoryPageSize <= 0 {
		return fmt.Errorf("history_page_size must be positive, got %d", c.HistoryPageSize)
	}
	return nil
}
