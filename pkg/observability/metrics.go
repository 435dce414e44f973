package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the authentication adaptor.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Authentication outcomes
	AuthRequestsTotal *prometheus.CounterVec

	// Credential cache
	CacheLookupsTotal   *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheErrorsTotal    *prometheus.CounterVec

	// Bitbucket API
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spoke_auth_requests_total",
				Help: "Total number of authentication attempts by result",
			},
			[]string{"result"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spoke_auth_cache_lookups_total",
				Help: "Total number of credential cache lookups by result",
			},
			[]string{"result"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spoke_auth_cache_evictions_total",
				Help: "Total number of credential cache evictions by reason",
			},
			[]string{"reason"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spoke_auth_cache_errors_total",
				Help: "Total number of credential cache backend errors by operation",
			},
			[]string{"operation"},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spoke_auth_upstream_requests_total",
				Help: "Total number of Bitbucket API requests",
			},
			[]string{"role", "status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spoke_auth_upstream_request_duration_seconds",
				Help:    "Bitbucket API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role"},
		),
	}

	registry.MustRegister(
		m.AuthRequestsTotal,
		m.CacheLookupsTotal,
		m.CacheEvictionsTotal,
		m.CacheErrorsTotal,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
	)

	return m
}

// RecordAuth counts an authentication attempt
func (m *Metrics) RecordAuth(result string) {
	if m == nil {
		return
	}
	m.AuthRequestsTotal.WithLabelValues(result).Inc()
}

// RecordCacheLookup counts a cache lookup (hit, miss, mismatch, error)
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCacheEviction counts evicted cache entries
func (m *Metrics) RecordCacheEviction(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvictionsTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordCacheError counts a failed backend operation
func (m *Metrics) RecordCacheError(operation string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(operation).Inc()
}

// ObserveUpstream records one Bitbucket API call
func (m *Metrics) ObserveUpstream(role, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(role, status).Inc()
	m.UpstreamRequestDuration.WithLabelValues(role).Observe(duration.Seconds())
}
