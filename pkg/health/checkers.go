package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is a dependency that can be probed for connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a database, cache or broker connection.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// GoroutineCountCheck fails when the goroutine count exceeds threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// HeartbeatCheck fails when a background loop has not reported progress
// within maxAge. A zero last time means the loop has not run yet and is
// tolerated.
func HeartbeatCheck(last func() time.Time, maxAge time.Duration, now func() time.Time) CheckFunc {
	return func(context.Context) error {
		t := last()
		if t.IsZero() {
			return nil
		}
		if age := now().Sub(t); age > maxAge {
			return errors.Errorf("last run %s ago exceeds %s", age.Round(time.Second), maxAge)
		}
		return nil
	}
}
