// Package cache holds the Redis client and the per-user id-set caches.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"unify/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// errorCounter feeds failed commands into RedisErrorRate. A miss
// (redis.Nil) is not a failure.
type errorCounter struct{}

func countFailure(op string, err error) error {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(op).Inc()
	}
	return err
}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return countFailure(cmd.Name(), next(ctx, cmd))
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		return countFailure("pipeline", next(ctx, cmds))
	}
}

// InitRedis initializes the Redis client with the given address. An empty
// or unreachable address leaves the client nil and callers fall back to
// in-process caches.
func InitRedis(addr string) {
	client = nil
	if strings.TrimSpace(addr) == "" {
		return
	}

	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			observability.GlobalLogger.Warn("invalid REDIS_URL, continuing without redis",
				slog.String("addr", addr), slog.String("error", err.Error()))
			return
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	c := NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		observability.GlobalLogger.Warn("redis unreachable, continuing without redis",
			slog.String("error", err.Error()))
		_ = c.Close()
		return
	}
	observability.GlobalLogger.Info("Redis connected successfully")
	client = c
}

// NewClient builds a client with the metrics hook attached.
func NewClient(opts *redis.Options) *redis.Client {
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})
	return c
}

// GetClient returns the current Redis client instance.
func GetClient() *redis.Client {
	return client
}
