// Package jobmetrics exposes Prometheus metrics of background jobs.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records runs of named jobs. A nil *Metrics is a no-op.
type Metrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	items    *prometheus.CounterVec
}

// New registers the job metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rental",
			Name:      "job_duration_seconds",
			Help:      "Duration of background job runs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		success: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "job_success_total",
			Help:      "Successful background job runs.",
		}, []string{"job"}),
		failure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "job_failure_total",
			Help:      "Failed background job runs.",
		}, []string{"job"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "job_items_total",
			Help:      "Records processed by background jobs.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.duration, m.success, m.failure, m.items)
	return m
}

// Observe records one run of job.
func (m *Metrics) Observe(job string, took time.Duration, processed int, err error) {
	if m == nil {
		return
	}
	job = label(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.failure.WithLabelValues(job).Inc()
		return
	}
	m.success.WithLabelValues(job).Inc()
	m.items.WithLabelValues(job).Add(float64(processed))
}

func label(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
