// CLAUDE:SUMMARY Prometheus metrics for target resolution: duration by tier and miss counts.
package perf

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records resolution timings. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry   *prometheus.Registry
	resolution *prometheus.HistogramVec
	misses     prometheus.Counter
	measured   *prometheus.HistogramVec
	requests   *prometheus.HistogramVec
}

// NewMetrics creates metrics registered on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tourguide"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolution: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Time to resolve a tour target, by winning tier.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"tier"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_misses_total",
			Help:      "Resolutions that exhausted every tier.",
		}),
		measured: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "measured_duration_seconds",
			Help:      "Durations of functions wrapped with Measure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(m.resolution, m.misses, m.measured, m.requests)
	return m
}

// Registry exposes the registry for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveResolution records a successful resolution.
func (m *Metrics) ObserveResolution(tier string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolution.WithLabelValues(tier).Observe(d.Seconds())
}

// ObserveMiss records an exhausted resolution.
func (m *Metrics) ObserveMiss(d time.Duration) {
	if m == nil {
		return
	}
	m.misses.Inc()
	m.resolution.WithLabelValues("miss").Observe(d.Seconds())
}

func (m *Metrics) observeMeasured(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.measured.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}
