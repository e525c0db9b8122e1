// Package config resolves turn-memory settings from defaults, config.toml,
// TURN_MEMORY_* environment variables and CLI flags.
package config

import (
	"os"
	"path/filepath"
)

// Config is the resolved configuration.
type Config struct {
	User      string          `mapstructure:"user"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Lock      LockConfig      `mapstructure:"lock"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Log       LogConfig       `mapstructure:"log"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

// StorageConfig selects the memory store.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite or postgres
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// LockConfig selects the per-key write lock. An empty RedisURL means an
// in-process lock.
type LockConfig struct {
	RedisURL   string `mapstructure:"redis_url"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// OracleConfig configures the extraction oracle. Provider "none" disables
// it, leaving only pattern fallback extraction.
type OracleConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// TriggerConfig points at an optional vocabulary override.
type TriggerConfig struct {
	VocabularyPath string `mapstructure:"vocabulary_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	JSON   bool   `mapstructure:"json"`
	Pretty bool   `mapstructure:"pretty"`
	Source bool   `mapstructure:"source"`
	// File, when set, receives a copy of every log line.
	File string `mapstructure:"file"`
}

// RetrievalConfig holds context assembly defaults.
type RetrievalConfig struct {
	TopK   int `mapstructure:"top_k"`
	Budget int `mapstructure:"budget"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		User: "default",
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: defaultDBPath(),
		},
		Lock: LockConfig{TTLSeconds: 10},
		Oracle: OracleConfig{
			Provider:  "anthropic",
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 1000,
		},
		Log:       LogConfig{Level: "info"},
		Retrieval: RetrievalConfig{TopK: 5, Budget: 1000},
	}
}

// Dir returns the default configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".turn-memory"
	}
	return filepath.Join(home, ".turn-memory")
}

func defaultDBPath() string {
	return filepath.Join(Dir(), "memory.db")
}
