package authapi

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	loginRateLimitEvents = 10
	loginRateLimitWindow = time.Minute
)

// rateLimiter is a sliding-window limiter for a single key.
type rateLimiter struct {
	mu     sync.Mutex
	events []time.Time
	limit  int
	window time.Duration
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = loginRateLimitEvents
	}
	if window <= 0 {
		window = loginRateLimitWindow
	}
	return &rateLimiter{
		events: make([]time.Time, 0, limit+8),
		limit:  limit,
		window: window,
	}
}

// allow reports whether an event at time "now" should be permitted.
func (r *rateLimiter) allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cut := now.Add(-r.window)
	dst := r.events[:0]
	for _, t := range r.events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	r.events = dst

	if len(r.events) >= r.limit {
		return false
	}
	r.events = append(r.events, now)
	return true
}

// loginLimiter tracks per-client limiters keyed by remote IP. Idle entries
// are dropped once they age past two windows.
type loginLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	limit   int
	window  time.Duration
}

type limiterEntry struct {
	rl   *rateLimiter
	seen time.Time
}

func newLoginLimiter(limit int, window time.Duration) *loginLimiter {
	if limit <= 0 {
		limit = loginRateLimitEvents
	}
	if window <= 0 {
		window = loginRateLimitWindow
	}
	return &loginLimiter{
		clients: make(map[string]*limiterEntry),
		limit:   limit,
		window:  window,
	}
}

func (l *loginLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{rl: newRateLimiter(l.limit, l.window)}
		l.clients[key] = e
	}
	e.seen = now
	if len(l.clients) > 1024 {
		l.evictIdle(now)
	}
	l.mu.Unlock()

	return e.rl.allow(now)
}

func (l *loginLimiter) evictIdle(now time.Time) {
	cut := now.Add(-2 * l.window)
	for k, e := range l.clients {
		if e.seen.Before(cut) {
			delete(l.clients, k)
		}
	}
}

// withLoginRateLimit guards credential-guessing surfaces. Over-limit
// clients get a 429 without touching the store.
func (h *Handler) withLoginRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.allow(clientKey(r), time.Now()) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, retry later")
			return
		}
		next(w, r)
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
