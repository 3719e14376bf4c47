package middlewares

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"folios/internal/utils"
)

const (
	visitorCleanupInterval = time.Minute
	visitorTTL             = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user, or per client IP for
// requests that carry no session.
type RateLimiter struct {
	mu           sync.Mutex
	rps          rate.Limit
	burst        int
	ipVisitors   map[string]*visitor
	userVisitors map[string]*visitor
	now          func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:          rate.Limit(rps),
		burst:        burst,
		ipVisitors:   make(map[string]*visitor),
		userVisitors: make(map[string]*visitor),
		now:          time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string, isUser bool) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	visitors := rl.ipVisitors
	if isUser {
		visitors = rl.userVisitors
	}

	v, exists := visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		visitors[key] = v
	}
	v.lastSeen = rl.now()

	return v.limiter
}

// CleanupVisitors forgets idle visitors every minute until ctx is done.
func (rl *RateLimiter) CleanupVisitors(ctx context.Context) {
	ticker := time.NewTicker(visitorCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-visitorTTL)
	for ip, v := range rl.ipVisitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.ipVisitors, ip)
		}
	}
	for userID, v := range rl.userVisitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.userVisitors, userID)
		}
	}
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var limiter *rate.Limiter

		if session := utils.SessionFromContext(r.Context()); session != nil {
			limiter = rl.getLimiter(session.UserID.Hex(), true)
		} else {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			limiter = rl.getLimiter(ip, false)
		}

		if !limiter.Allow() {
			log.Warn().Str("remoteAddr", r.RemoteAddr).Str("path", r.URL.Path).Msg("Rate limit exceeded")
			utils.SendJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
