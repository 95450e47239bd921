package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxIdleKeys bounds the per-key bucket map before idle buckets are pruned
const maxIdleKeys = 10000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is a per-key token bucket refilling limit tokens per window. It
// approximates the sliding window for a single process.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	every   rate.Limit
	window  time.Duration
	now     func() time.Time
}

// NewLocal creates a process-local limiter
func NewLocal(limit int, window time.Duration) *Local {
	return &Local{
		buckets: make(map[string]*bucket),
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		window:  window,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket
func (l *Local) Allow(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Limit: l.limit}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxIdleKeys {
			l.prune(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.every, l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := Result{Limit: l.limit}
	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res, nil
	}
	res.Allowed = true
	res.Remaining = int(b.limiter.TokensAt(now))
	return res, nil
}

// prune drops buckets idle for a full window; they are full again anyway
func (l *Local) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, key)
		}
	}
}
