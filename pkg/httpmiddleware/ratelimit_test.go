package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func get(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, RateLimitConfig{Max: 3, Window: time.Hour})(okHandler())

	for i := range 3 {
		w := get(h, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := get(h, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", string(body.Error.Code))

	w = get(h, func(r *http.Request) { r.RemoteAddr = "10.0.0.2:4000" })
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")

	w = get(h, func(r *http.Request) { r.Header.Set("X-API-Key", "k1") })
	assert.Equal(t, http.StatusOK, w.Code, "API keys are bucketed apart from the address")
}

func TestLimiterSlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)

	_, _, ok := l.take("a", start)
	require.True(t, ok)
	_, _, ok = l.take("a", start.Add(time.Second))
	require.True(t, ok)
	_, _, ok = l.take("a", start.Add(2*time.Second))
	require.False(t, ok)

	// Half way into the next window about half of the previous count applies.
	_, _, ok = l.take("a", start.Add(90*time.Second))
	require.True(t, ok)
	_, _, ok = l.take("a", start.Add(91*time.Second))
	require.True(t, ok)
	_, _, ok = l.take("a", start.Add(92*time.Second))
	require.False(t, ok)

	_, _, ok = l.take("a", start.Add(5*time.Minute))
	require.True(t, ok, "stale windows are reset")

	l.evict(start.Add(10 * time.Minute))
	assert.Empty(t, l.buckets)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:5555"
	assert.Equal(t, "ip:192.168.1.9", ClientKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.5", ClientKey(req))

	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, "key:secret", ClientKey(req))
}
