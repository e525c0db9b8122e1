package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// TURN_MEMORY_STORAGE_SQLITE_PATH.
const EnvPrefix = "TURN_MEMORY"

// InitViper returns a viper instance with defaults registered, config.toml
// read from dir when present and environment variables bound.
//
// Precedence, highest first: bound flags, environment, config.toml,
// defaults.
func InitViper(dir string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The Anthropic SDK's conventional variable also supplies the key.
	if err := v.BindEnv("oracle.api_key", EnvPrefix+"_ORACLE_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding api key: %w", err)
	}
	return v, nil
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "postgres" {
		return c, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresURL == "" {
		return c, errors.New("storage.postgres_url is required for the postgres driver")
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("user", d.User)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_url", d.Storage.PostgresURL)

	v.SetDefault("lock.redis_url", d.Lock.RedisURL)
	v.SetDefault("lock.ttl_seconds", d.Lock.TTLSeconds)

	v.SetDefault("oracle.provider", d.Oracle.Provider)
	v.SetDefault("oracle.model", d.Oracle.Model)
	v.SetDefault("oracle.api_key", d.Oracle.APIKey)
	v.SetDefault("oracle.base_url", d.Oracle.BaseURL)
	v.SetDefault("oracle.max_tokens", d.Oracle.MaxTokens)

	v.SetDefault("trigger.vocabulary_path", d.Trigger.VocabularyPath)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.source", d.Log.Source)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.budget", d.Retrieval.Budget)
}
