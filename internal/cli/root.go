// Package cli implements the turn-memory CLI commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rcliao/turn-memory/internal/config"
	"github.com/rcliao/turn-memory/internal/engine"
	"github.com/rcliao/turn-memory/internal/extract"
	"github.com/rcliao/turn-memory/internal/keylock"
	"github.com/rcliao/turn-memory/internal/logger"
	"github.com/rcliao/turn-memory/internal/store"
	"github.com/rcliao/turn-memory/internal/trigger"
)

var (
	configDir string
	verbose   bool
	v         *viper.Viper
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "turn-memory",
	Short: "Structured memory for conversational agents",
	Long: "Decide which conversation turns are worth remembering, extract structured memories from them, " +
		"keep one active value per key and rank memories for a context window.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		v, err = config.InitViper(configDir)
		if err != nil {
			return err
		}
		flags := cmd.Root().PersistentFlags()
		for key, name := range map[string]string{
			"storage.sqlite_path": "db",
			"user":                "user",
			"log.level":           "log-level",
		} {
			if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.Dir(), "Directory holding config.toml")
	RootCmd.PersistentFlags().StringP("db", "d", "", "SQLite database path (default: $TURN_MEMORY_STORAGE_SQLITE_PATH or ~/.turn-memory/memory.db)")
	RootCmd.PersistentFlags().StringP("user", "u", "", "User the memories belong to (default: $TURN_MEMORY_USER or \"default\")")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func loadConfig() config.Config {
	if v == nil {
		exitErr("config", fmt.Errorf("configuration not initialised"))
	}
	cfg, err := config.Load(v)
	if err != nil {
		exitErr("config", err)
	}
	return cfg
}

func userID() string {
	return loadConfig().User
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := []logger.Option{
		logger.WithLevel(cfg.Log.Level),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPretty(cfg.Log.Pretty),
		logger.WithSource(cfg.Log.Source),
	}
	if verbose {
		opts = append(opts, logger.WithDebug(true))
	}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			exitErr("open log file", err)
		}
		// The file stays open for the life of the process.
		opts = append(opts, logger.WithWriters(os.Stderr, f))
	}
	return logger.New(opts...)
}

// openService builds the engine from configuration. The returned func
// releases the store and lock connections.
func openService(ctx context.Context) (*engine.Service, func(), error) {
	cfg := loadConfig()
	log := newLogger(cfg)

	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore(ctx, cfg, store.WithLocker(locker), store.WithLogger(log.With("component", "store")))
	if err != nil {
		closeLocker()
		return nil, nil, err
	}

	opts := []engine.Option{engine.WithLogger(log)}
	if cfg.Trigger.VocabularyPath != "" {
		vocab, err := trigger.LoadVocabulary(cfg.Trigger.VocabularyPath)
		if err != nil {
			st.Close()
			closeLocker()
			return nil, nil, err
		}
		opts = append(opts, engine.WithPolicy(trigger.NewPolicy(vocab)))
	}
	if oracle := openOracle(cfg, log); oracle != nil {
		opts = append(opts, engine.WithOracle(oracle))
	}

	closeAll := func() {
		st.Close()
		closeLocker()
	}
	return engine.New(st, opts...), closeAll, nil
}

func openStore(ctx context.Context, cfg config.Config, opts ...store.Option) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Storage.PostgresURL, opts...)
	default:
		return store.NewSQLiteStore(cfg.Storage.SQLitePath, opts...)
	}
}

func openLocker(ctx context.Context, cfg config.Config, log *slog.Logger) (keylock.Locker, func(), error) {
	if cfg.Lock.RedisURL == "" {
		return keylock.NewLocal(), func() {}, nil
	}
	r, err := keylock.DialRedis(ctx, cfg.Lock.RedisURL, time.Duration(cfg.Lock.TTLSeconds)*time.Second)
	if err != nil {
		return nil, nil, err
	}
	r.OnReleaseError(func(key string, err error) {
		log.Warn("releasing key lock", "key", key, "error", err)
	})
	return r, func() { r.Close() }, nil
}

func openOracle(cfg config.Config, log *slog.Logger) extract.Oracle {
	if cfg.Oracle.Provider != "anthropic" {
		return nil
	}
	o, err := extract.NewAnthropicOracle(extract.AnthropicConfig{
		APIKey:    cfg.Oracle.APIKey,
		Model:     cfg.Oracle.Model,
		MaxTokens: cfg.Oracle.MaxTokens,
		BaseURL:   cfg.Oracle.BaseURL,
	})
	if err != nil {
		log.Debug("extraction oracle disabled", "error", err)
		return nil
	}
	return o
}

func mustService(cmd *cobra.Command) (*engine.Service, func()) {
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	return svc, closeFn
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
