package middleware

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"socialnet/internal/httputil"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per client. Authenticated requests are
// keyed by user id, anonymous ones by IP.
type RateLimiter struct {
	clients map[string]*clientLimit
	rps     rate.Limit
	burst   int
	mu      sync.Mutex
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimit),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := GetUserIDFromContext(r.Context())
		if !ok {
			clientID = "ip:" + getClientIP(r)
		}

		if !rl.Allow(clientID) {
			httputil.WriteTooManyRequests(w, rl.retryAfter())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientID]
	if !exists {
		client = &clientLimit{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[clientID] = client
	}
	client.lastSeen = now

	return client.limiter.AllowN(now, 1)
}

// retryAfter is the whole seconds until one token refills.
func (rl *RateLimiter) retryAfter() int {
	if rl.rps <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(rl.rps)))
}

// Cleanup drops clients idle for longer than limiterIdleTTL.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-limiterIdleTTL)
	for clientID, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, clientID)
		}
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// first hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
