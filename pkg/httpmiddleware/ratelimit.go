package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xenking/rental-ledger/pkg/apierr"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc picks the bucket of a request. Defaults to ClientKey.
	KeyFunc func(*http.Request) string
}

// bucket counts requests in the current and the previous fixed window; the
// previous one is weighted by how much of it still overlaps the sliding
// window.
type bucket struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	max    int
	window time.Duration
	key    func(*http.Request) string

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	key := cfg.KeyFunc
	if key == nil {
		key = ClientKey
	}
	return &limiter{
		max:     cfg.Max,
		window:  cfg.Window,
		key:     key,
		buckets: make(map[string]*bucket),
	}
}

func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, found := l.buckets[key]
	if !found {
		b = &bucket{start: now.Truncate(l.window)}
		l.buckets[key] = b
	}
	switch elapsed := now.Sub(b.start); {
	case elapsed >= 2*l.window:
		b.start, b.prev, b.curr = now.Truncate(l.window), 0, 0
	case elapsed >= l.window:
		b.start, b.prev, b.curr = b.start.Add(l.window), b.curr, 0
	}

	overlap := 1 - float64(now.Sub(b.start))/float64(l.window)
	used := b.prev*math.Max(overlap, 0) + b.curr
	reset = b.start.Add(l.window)
	if used >= float64(l.max) {
		return 0, reset, false
	}
	b.curr++
	return max(int(float64(l.max)-used-1), 0), reset, true
}

func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.window {
			delete(l.buckets, k)
		}
	}
}

// RateLimit limits requests per key and sets X-RateLimit-* headers on every
// response. Stale buckets are evicted every two windows until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.evict(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			remaining, reset, ok := l.take(l.key(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				retry := max(reset.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, apierr.CodeRateLimit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey buckets authenticated callers by API key and anonymous ones by
// client address.
func ClientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
