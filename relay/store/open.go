package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/proxyrelay/core/logger"
)

// Config selects and configures the persistence backend.
type Config struct {
	Driver string      `yaml:"driver" envconfig:"STORE_DRIVER"`
	Dir    string      `yaml:"dir" envconfig:"STORE_DIR"`
	Redis  RedisConfig `yaml:"redis"`
}

// Normalize lowercases the driver and applies defaults.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverFile
	}
	switch c.Driver {
	case DriverFile:
		if strings.TrimSpace(c.Dir) == "" {
			c.Dir = "data"
		}
	case DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: file, postgres, redis, memory", c.Driver)
	}
	return nil
}

// Open returns the backend named by cfg.Driver. db is required for the
// postgres driver and ignored otherwise.
func Open(ctx context.Context, cfg Config, db *sqlx.DB) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case DriverFile, "":
		st, err = NewFile(cfg.Dir)
	case DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("store: postgres driver needs a database connection")
		}
		st = NewPostgres(db)
	case DriverRedis:
		client := NewRedisClient(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("store: redis ping %s: %w", cfg.Redis.Addr(), err)
		}
		st = NewRedis(client, cfg.Redis.Prefix)
	case DriverMemory:
		st = NewMemory()
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "store", "store.open",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Driver),
	)
	return st, nil
}
