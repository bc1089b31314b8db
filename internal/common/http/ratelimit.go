package http

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pixfeed/pixfeed/backend/internal/common/constants"
	"github.com/pixfeed/pixfeed/backend/internal/observability/metrics"
)

type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	cleanup  *time.Ticker
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		cleanup:  time.NewTicker(constants.RateLimitCleanupInterval),
	}

	go rl.cleanupLimiters()

	return rl
}

func (rl *RateLimiter) cleanupLimiters() {
	for range rl.cleanup.C {
		rl.mu.Lock()
		for key, limiter := range rl.limiters {
			if limiter.Allow() {
				delete(rl.limiters, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		limiter, exists = rl.limiters[key]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[key] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// StrictRateLimiter applies tighter budgets to credential and upload
// endpoints than to general reads.
type StrictRateLimiter struct {
	loginLimiter    *RateLimiter
	registerLimiter *RateLimiter
	uploadLimiter   *RateLimiter
	generalLimiter  *RateLimiter
}

func NewStrictRateLimiter() *StrictRateLimiter {
	return &StrictRateLimiter{
		loginLimiter:    NewRateLimiter(constants.RateLimitLoginRequestsPerSecond, constants.RateLimitLoginBurst),
		registerLimiter: NewRateLimiter(constants.RateLimitRegisterRequestsPerSecond, constants.RateLimitRegisterBurst),
		uploadLimiter:   NewRateLimiter(constants.RateLimitUploadRequestsPerSecond, constants.RateLimitUploadBurst),
		generalLimiter:  NewRateLimiter(constants.RateLimitGeneralRequestsPerSecond, constants.RateLimitGeneralBurst),
	}
}

func (srl *StrictRateLimiter) MiddlewareForRequest(method, path string) func(http.Handler) http.Handler {
	var limiter *RateLimiter
	var limiterType string

	switch {
	case path == "/api/auth/login":
		limiter = srl.loginLimiter
		limiterType = "login"
	case path == "/api/auth/register":
		limiter = srl.registerLimiter
		limiterType = "register"
	case method == http.MethodPost && (path == "/api/posts" || path == "/api/users/me/image"):
		limiter = srl.uploadLimiter
		limiterType = "upload"
	default:
		limiter = srl.generalLimiter
		limiterType = "general"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetClientIP(r)

			if !limiter.Allow(key) {
				metrics.RateLimitBlocked.WithLabelValues(path, limiterType).Inc()
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
