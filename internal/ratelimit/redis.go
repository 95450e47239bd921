package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "vidtube:ratelimit:"

// Redis is a sliding-window log limiter. Each allowed request is a member
// of a sorted set scored by its timestamp in milliseconds; members older
// than the window are trimmed before counting.
type Redis struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis creates a limiter allowing limit requests per window
func NewRedis(client redis.UniversalClient, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		limit:  limit,
		window: window,
		prefix: defaultPrefix,
		now:    time.Now,
	}
}

// Allow records one request for key and reports whether it fits the window
func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	res := Result{Limit: r.limit}
	redisKey := r.prefix + key
	now := r.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - r.window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowMs), Member: member})
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return res, errors.Wrap(err, "rate limit pipeline failed")
	}

	n := int(count.Val())
	if n <= r.limit {
		res.Allowed = true
		res.Remaining = r.limit - n
		return res, nil
	}

	// Rejected requests do not occupy the window.
	if err := r.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return res, errors.Wrap(err, "failed to drop rejected request")
	}
	if first := oldest.Val(); len(first) > 0 {
		res.RetryAfter = time.Duration(int64(first[0].Score)+r.window.Milliseconds()-nowMs) * time.Millisecond
	}
	if res.RetryAfter <= 0 {
		res.RetryAfter = time.Millisecond
	}
	return res, nil
}
