package middleware

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/lessontutor/internal/api/response"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-user token bucket. Idle entries are evicted while
// handling requests, so no background goroutine is needed.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	burst    int
	idle     time.Duration
	lastGC   time.Time
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per user per minute. A non-positive
// value disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		burst:    perMinute,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
	if perMinute > 0 {
		rl.every = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return rl
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.burst <= 0 {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastGC) > rl.idle {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idle {
				delete(rl.visitors, k)
			}
		}
		rl.lastGC = now
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Handler limits requests by the authenticated user, falling back to the remote address.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := UserID(r.Context())
		if !ok {
			key = r.RemoteAddr
		}
		if !rl.Allow(key) {
			response.Error(w, r, apierr.New(http.StatusTooManyRequests, apierr.CodeRateLimited,
				errors.New("too many requests")).WithStage("rate_limit"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
