package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/proxyrelay/core/logger"
)

// RedisConfig holds connection settings for the redis driver.
type RedisConfig struct {
	Host        string        `yaml:"host" envconfig:"REDIS_HOST"`
	Port        int           `yaml:"port" envconfig:"REDIS_PORT"`
	Password    string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB          int           `yaml:"db" envconfig:"REDIS_DB"`
	MaxRetries  int           `yaml:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	DialTimeout time.Duration `yaml:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT"`
	// Prefix namespaces keys; defaults to "proxyrelay:".
	Prefix string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// Addr returns host:port with defaults applied.
func (c RedisConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return host + ":" + strconv.Itoa(port)
}

// redisKV is the subset of *redis.Client used by Redis.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Redis stores documents as plain string values without expiry.
type Redis struct {
	rdb    redisKV
	prefix string
}

// NewRedisClient builds a go-redis client from cfg.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr(),
		Password:              cfg.Password,
		DB:                    cfg.DB,
		MaxRetries:            cfg.MaxRetries,
		DialTimeout:           cfg.DialTimeout,
		ContextTimeoutEnabled: true,
	})
}

// NewRedis wraps a client; an empty prefix defaults to "proxyrelay:".
func NewRedis(rdb redisKV, prefix string) *Redis {
	if prefix == "" {
		prefix = "proxyrelay:"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, key string, v any) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	data, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

// Save implements Store. SET replaces the value atomically.
func (r *Redis) Save(ctx context.Context, key string, v any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := r.rdb.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		logger.Error(ctx, "store", "store.save",
			slog.String("status", "fail"),
			slog.String("driver", DriverRedis),
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("store: redis set %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
