package ratelimit

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// NewTelegramLimiter builds the chat-platform limiter: rpm in [10,100] and
// per-channel spacing in [0.5,10]s per spec §6 Config.
func NewTelegramLimiter(rpm int, spacingSeconds float64, rdb *redis.Client) *Limiter {
	return New("telegram", rpm, time.Duration(spacingSeconds*float64(time.Second)), rdb)
}

// NewAILimiter builds the AI-model limiter; no per-entity spacing is
// required by spec §4.3 for this limiter.
func NewAILimiter(rpm int, rdb *redis.Client) *Limiter {
	return New("ai", rpm, 0, rdb)
}
