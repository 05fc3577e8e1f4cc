package jobmetrics

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe("hold_sweeper", time.Second, 3, nil)
	m.Observe("hold_sweeper", time.Second, 2, nil)
	m.Observe("hold_sweeper", time.Second, 0, errors.New("db down"))
	m.Observe("", time.Millisecond, 1, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.success.WithLabelValues("hold_sweeper")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failure.WithLabelValues("hold_sweeper")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.items.WithLabelValues("hold_sweeper")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.success.WithLabelValues("unknown")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe("hold_sweeper", time.Second, 1, nil) })
}
