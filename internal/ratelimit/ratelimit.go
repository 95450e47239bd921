// Package ratelimit throttles authenticated mutations per user with a
// sliding window. The window lives in Redis so every server instance shares
// it; a process-local token bucket is used when no Redis is configured.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/config"
)

// Result is the outcome of one Allow call
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// New builds the limiter described by cfg. It returns nil when rate
// limiting is disabled.
func New(cfg *config.RateLimitConfig) Limiter {
	if !cfg.Enabled {
		return nil
	}
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set, using process-local rate limiter")
		return NewLocal(cfg.Requests, cfg.Window)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return FailOpen(NewRedis(client, cfg.Requests, cfg.Window))
}

// failOpen lets requests through when the wrapped limiter errors
type failOpen struct {
	next Limiter
}

// FailOpen wraps next so that a limiter failure allows the request and
// logs a warning instead of rejecting it.
func FailOpen(next Limiter) Limiter {
	return &failOpen{next: next}
}

func (f *failOpen) Allow(ctx context.Context, key string) (Result, error) {
	res, err := f.next.Allow(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable, allowing request")
		return Result{Allowed: true, Limit: res.Limit, Remaining: res.Limit}, nil
	}
	return res, nil
}
