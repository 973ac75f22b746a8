package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Limiter is a fixed-window counter keyed by client IP. It protects the
// small REST surface; websocket traffic is paced by the connection
// itself.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	per     time.Duration
}

type bucket struct {
	ts     time.Time // window start
	tokens int       // remaining tokens
}

// New creates a limiter allowing max requests per window.
func New(max int, per time.Duration) *Limiter {
	return &Limiter{buckets: map[string]*bucket{}, max: max, per: per}
}

// Allow consumes one token for key, starting a fresh window if the
// previous one expired. Stale buckets are pruned opportunistically so
// the map does not grow with every IP ever seen.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b := l.buckets[key]
	if b == nil || now.Sub(b.ts) > l.per {
		if len(l.buckets) > 1024 {
			l.prune(now)
		}
		b = &bucket{ts: now, tokens: l.max}
		l.buckets[key] = b
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets whose window has lapsed. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.ts) > l.per {
			delete(l.buckets, k)
		}
	}
}

// Middleware enforces the limit by remote IP before calling next.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.Allow(ip) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
