// Package health serves liveness and readiness probes.
//
// Every registered check runs on its own ticker. A check flips to unhealthy
// after failAfter consecutive failures and back to healthy after passAfter
// consecutive successes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

const (
	failAfter = 3
	passAfter = 1
)

// probe is owned by a single ticker goroutine. Only healthy and lastErr are
// read concurrently.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, fn: fn}
	p.healthy.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= failAfter {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= passAfter {
		p.healthy.Store(true)
	}
}

func (p *probe) failure() string {
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error()
	}
	return "check is unhealthy"
}

// Health tracks the probes of one process. It starts not ready.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a check that decides whether the process may
// receive traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, fn))
}

// Start runs every registered check once immediately and then every interval
// until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := append(append([]*probe(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop cancels the check goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the process ready (after startup) or not (while draining).
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the process is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(failures(h.snapshot(false))) == 0
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.snapshot(true)))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

func (h *Health) snapshot(live bool) []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if live {
		return append([]*probe(nil), h.liveness...)
	}
	return append([]*probe(nil), h.readiness...)
}

func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if !p.healthy.Load() {
			out[p.name] = p.failure()
		}
	}
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
