package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func decode(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("ok", time.Second, pass)
	h.AddLivenessCheck("db", time.Second, fail("connection refused"))

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code, "checks start healthy")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	ctx := context.Background()
	for range failAfter - 1 {
		h.liveness[1].run(ctx)
	}
	w = httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code, "below the failure threshold")

	h.liveness[1].run(ctx)
	w = httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, pass)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w).Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w).Status)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbeRecovers(t *testing.T) {
	healthy := false
	p := newProbe("redis", time.Second, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	ctx := context.Background()
	for range failAfter {
		p.run(ctx)
	}
	assert.False(t, p.healthy.Load())
	assert.Equal(t, "down", p.failure())

	healthy = true
	p.run(ctx)
	assert.True(t, p.healthy.Load())
}

func TestStartRunsChecks(t *testing.T) {
	ran := make(chan struct{}, 1)
	h := New()
	h.AddReadinessCheck("kafka", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	h.Start(context.Background(), time.Hour)
	defer h.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check did not run on start")
	}
	h.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, PingCheck(pinger{})(ctx))
	require.Error(t, PingCheck(pinger{err: errors.New("refused")})(ctx))

	require.NoError(t, GoroutineCountCheck(1<<20)(ctx))
	require.Error(t, GoroutineCountCheck(0)(ctx))

	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	var last time.Time
	check := HeartbeatCheck(func() time.Time { return last }, time.Minute, clock)
	require.NoError(t, check(ctx), "never ran")
	last = now.Add(-30 * time.Second)
	require.NoError(t, check(ctx))
	last = now.Add(-2 * time.Minute)
	require.Error(t, check(ctx))
}
