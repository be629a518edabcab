// Package ratelimit implements the token-bucket + per-entity backoff
// limiter shared by the chat-platform and AI limiters (spec §4.3). The
// global bucket is golang.org/x/time/rate; per-entity backoff state is kept
// in-process. When Redis is configured, Backoff also writes each entity's
// cooldown there, but nothing reads it back, so the in-process state starts
// empty after a restart.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"golang.org/x/time/rate"
)

// maxBackoffWait is the ceiling past which Acquire fails fast instead of
// blocking (spec §4.3: "if the wait would exceed 60 s it fails fast").
const maxBackoffWait = 60 * time.Second

// Limiter is a token-bucket global limiter with a per-entity backoff map and
// optional per-entity minimum spacing.
type Limiter struct {
	name    string
	rpm     int
	bucket  *rate.Limiter
	spacing time.Duration

	mu            sync.Mutex
	backoffUntil  map[string]time.Time
	lastCallAt    map[string]time.Time

	totalAcquired int64
	backoffCount  int64

	redis *redis.Client
}

// New builds a Limiter with the given requests-per-minute capacity and
// optional per-entity call spacing (0 disables spacing).
func New(name string, rpm int, spacing time.Duration, rdb *redis.Client) *Limiter {
	if rpm <= 0 {
		rpm = 1
	}
	perSecond := float64(rpm) / 60.0
	return &Limiter{
		name:         name,
		rpm:          rpm,
		bucket:       rate.NewLimiter(rate.Limit(perSecond), rpm),
		spacing:      spacing,
		backoffUntil: make(map[string]time.Time),
		lastCallAt:   make(map[string]time.Time),
		redis:        rdb,
	}
}

// Acquire waits for a global token and for any per-entity backoff/spacing to
// clear, then consumes one token. It fails fast with a RateLimitError if the
// wait would exceed maxBackoffWait.
func (l *Limiter) Acquire(ctx context.Context, entity string) error {
	if wait, ok := l.pendingWait(entity); ok {
		if wait > maxBackoffWait {
			return polyerrors.NewRateLimit(int(wait.Seconds()), fmt.Errorf("%s: entity %s in backoff", l.name, entity))
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	reservation := l.bucket.Reserve()
	if !reservation.OK() {
		return polyerrors.NewRateLimit(int(maxBackoffWait.Seconds()), fmt.Errorf("%s: no token available", l.name))
	}
	delay := reservation.Delay()
	if delay > maxBackoffWait {
		reservation.Cancel()
		return polyerrors.NewRateLimit(int(delay.Seconds()), fmt.Errorf("%s: token wait exceeds bound", l.name))
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		}
	}

	l.mu.Lock()
	l.lastCallAt[entity] = time.Now()
	l.mu.Unlock()

	atomic.AddInt64(&l.totalAcquired, 1)
	return nil
}

// pendingWait returns how long the caller must still wait for entity
// (backoff or spacing, whichever is longer) and whether any wait applies.
func (l *Limiter) pendingWait(entity string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var wait time.Duration

	if until, ok := l.backoffUntil[entity]; ok && until.After(now) {
		wait = until.Sub(now)
	}
	if l.spacing > 0 {
		if last, ok := l.lastCallAt[entity]; ok {
			if elapsed := now.Sub(last); elapsed < l.spacing {
				if spaceWait := l.spacing - elapsed; spaceWait > wait {
					wait = spaceWait
				}
			}
		}
	}
	return wait, wait > 0
}

// Backoff records a remote-requested cooldown for entity and drains the
// global bucket to zero, per spec §4.3 / GLOSSARY "Backoff".
func (l *Limiter) Backoff(entity string, wait time.Duration) {
	l.mu.Lock()
	l.backoffUntil[entity] = time.Now().Add(wait)
	l.mu.Unlock()

	atomic.AddInt64(&l.backoffCount, 1)
	l.drain()

	if l.redis != nil {
		key := fmt.Sprintf("polyforge:ratelimit:%s:backoff:%s", l.name, entity)
		l.redis.Set(context.Background(), key, time.Now().Add(wait).Unix(), wait)
	}
}

func (l *Limiter) drain() {
	for {
		r := l.bucket.ReserveN(time.Now(), 1)
		if !r.OK() || r.Delay() > 0 {
			if r.OK() {
				r.Cancel()
			}
			return
		}
	}
}

// Stats reports current limiter state (spec §4.3 get_stats).
func (l *Limiter) Stats() interfaces.RateLimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	inBackoff := make([]string, 0, len(l.backoffUntil))
	for entity, until := range l.backoffUntil {
		if until.After(now) {
			inBackoff = append(inBackoff, entity)
		}
	}

	return interfaces.RateLimiterStats{
		RPM:               l.rpm,
		RemainingTokens:   l.bucket.Tokens(),
		TotalAcquired:     atomic.LoadInt64(&l.totalAcquired),
		BackoffCount:      atomic.LoadInt64(&l.backoffCount),
		EntitiesInBackoff: inBackoff,
	}
}

var _ interfaces.RateLimiter = (*Limiter)(nil)
