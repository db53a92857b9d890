package twitter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles calls per connected account, adapted from the
// starting codebase's internal/social.RateLimiter but narrowed to a
// single platform's key space (userID only, no platform tag needed).
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Twitter's v2 API allows roughly 300 requests per 15-minute window per
// user context for the endpoints this client calls.
const (
	twitterLimit = rate.Limit(300.0 / (15 * 60))
	twitterBurst = 10
)

func (rl *RateLimiter) getLimiter(userID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.limiters[userID]
	rl.mu.RUnlock()
	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok := rl.limiters[userID]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(twitterLimit, twitterBurst)
	rl.limiters[userID] = limiter
	return limiter
}

func (rl *RateLimiter) Wait(ctx context.Context, userID string) error {
	return rl.getLimiter(userID).Wait(ctx)
}
