package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/engine"
	"github.com/weftlabs/weft/store"
	"github.com/weftlabs/weft/store/memory"
	"github.com/weftlabs/weft/store/postgres"
	weftredis "github.com/weftlabs/weft/store/redis"
	"github.com/weftlabs/weft/trigger"
)

// config is the weft.yaml file layout. Every key can be overridden via
// a WEFT_-prefixed environment variable, e.g. WEFT_STORE_DRIVER.
type config struct {
	Listen string `mapstructure:"listen"`

	Store struct {
		// Driver selects the backend: memory, redis, or postgres.
		Driver string `mapstructure:"driver"`
		// DSN is the Postgres connection string.
		DSN string `mapstructure:"dsn"`
		// Addr is the Redis address.
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"store"`

	// Workflows is a list of definition files or glob patterns loaded
	// at startup.
	Workflows []string `mapstructure:"workflows"`

	Engine struct {
		StepTimeout        time.Duration `mapstructure:"step_timeout"`
		MaxRetries         int           `mapstructure:"max_retries"`
		CacheSweepInterval time.Duration `mapstructure:"cache_sweep_interval"`
		ScheduleTick       time.Duration `mapstructure:"schedule_tick"`
		QueueConcurrency   int           `mapstructure:"queue_concurrency"`
		ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"engine"`

	Log struct {
		// Level is debug, info, warn, or error.
		Level string `mapstructure:"level"`
		// Format is text or json.
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// loadConfig reads the config file (if present) and the environment.
// A missing config file is not an error; defaults apply.
func loadConfig() (*config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("weft")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/weft")
	}
	v.SetEnvPrefix("WEFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	defaults := weft.DefaultConfig()
	v.SetDefault("engine.step_timeout", defaults.DefaultStepTimeout)
	v.SetDefault("engine.max_retries", defaults.DefaultMaxRetries)
	v.SetDefault("engine.cache_sweep_interval", defaults.CacheSweepInterval)
	v.SetDefault("engine.schedule_tick", defaults.ScheduleTick)
	v.SetDefault("engine.queue_concurrency", defaults.QueueConcurrency)
	v.SetDefault("engine.shutdown_timeout", defaults.ShutdownTimeout)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// newLogger builds the slog logger described by the config.
func newLogger(cfg *config) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
}

// openStore builds the configured store backend. The second return is
// the queue source when the backend supports one.
func openStore(ctx context.Context, cfg *config, logger *slog.Logger) (store.Store, trigger.Source, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "", "memory":
		return memory.New(), nil, nil

	case "redis":
		if cfg.Store.Addr == "" {
			return nil, nil, fmt.Errorf("store.addr is required for the redis driver")
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.Addr,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
		})
		st := weftredis.New(client, weftredis.WithLogger(logger))
		return st, trigger.NewRedisSource(client), nil

	case "postgres":
		if cfg.Store.DSN == "" {
			return nil, nil, fmt.Errorf("store.dsn is required for the postgres driver")
		}
		st, err := postgres.New(ctx, cfg.Store.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildEngine composes an Engine from the config, loading every
// configured workflow definition.
func buildEngine(ctx context.Context, cfg *config, logger *slog.Logger) (*engine.Engine, error) {
	st, source, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ecfg := weft.DefaultConfig()
	ecfg.DefaultStepTimeout = cfg.Engine.StepTimeout
	ecfg.DefaultMaxRetries = cfg.Engine.MaxRetries
	ecfg.CacheSweepInterval = cfg.Engine.CacheSweepInterval
	ecfg.ScheduleTick = cfg.Engine.ScheduleTick
	ecfg.QueueConcurrency = cfg.Engine.QueueConcurrency
	ecfg.ShutdownTimeout = cfg.Engine.ShutdownTimeout

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithConfig(ecfg),
	}
	if source != nil {
		opts = append(opts, engine.WithQueueSource(source))
	}

	eng, err := engine.Build(st, opts...)
	if err != nil {
		return nil, err
	}

	for _, pattern := range cfg.Workflows {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("workflow pattern %q: %w", pattern, err)
		}
		if len(paths) == 0 {
			logger.Warn("workflow pattern matched no files", slog.String("pattern", pattern))
		}
		for _, path := range paths {
			src, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read workflow %s: %w", path, err)
			}
			if _, err := eng.RegisterWorkflow(src); err != nil {
				return nil, fmt.Errorf("load workflow %s: %w", path, err)
			}
		}
	}
	return eng, nil
}
