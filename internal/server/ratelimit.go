package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxIdleBuckets triggers eviction of buckets idle for two windows.
const maxIdleBuckets = 10000

// rateInfo is the state of one client's bucket after a request.
type rateInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// limiter is an in-memory token bucket per client: capacity tokens refill
// evenly over window.
type limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

func newLimiter(capacity int, window time.Duration, now func() time.Time) *limiter {
	return &limiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
		now:      now,
	}
}

// allow takes a token from key's bucket if one is available.
func (l *limiter) allow(key string) rateInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxIdleBuckets {
			l.evictLocked(now)
		}
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		refill := int(float64(l.capacity) * elapsed.Seconds() / l.window.Seconds())
		if refill > 0 {
			b.tokens = min(l.capacity, b.tokens+refill)
			b.lastRefill = now
		}
	}

	info := rateInfo{Limit: l.capacity, ResetAt: b.lastRefill.Add(l.window)}
	if b.tokens > 0 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = b.tokens
	return info
}

func (l *limiter) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > 2*l.window {
			delete(l.buckets, key)
		}
	}
}

// rateLimit applies the limiter per client and sets the X-RateLimit headers.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := s.limiter.allow(clientKey(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

		if !info.Allowed {
			retry := int(info.ResetAt.Sub(s.now()).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(max(retry, 1)))
			renderError(w, http.StatusTooManyRequests, "rate_limited",
				fmt.Sprintf("execution limit of %d per %s reached", info.Limit, s.limiter.window))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller: the token subject when authenticated,
// otherwise the remote host.
func clientKey(r *http.Request) string {
	if subject := GetSubject(r.Context()); subject != "" {
		return "sub:" + subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
