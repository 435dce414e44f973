package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.AuthRequestsTotal)
	assert.NotNil(t, metrics.CacheLookupsTotal)
	assert.NotNil(t, metrics.CacheEvictionsTotal)
	assert.NotNil(t, metrics.CacheErrorsTotal)
	assert.NotNil(t, metrics.UpstreamRequestsTotal)
	assert.NotNil(t, metrics.UpstreamRequestDuration)

	assert.Panics(t, func() { NewMetrics(registry) }, "double registration must panic")
}

func TestMetrics_Record(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordAuth("accepted")
	metrics.RecordAuth("accepted")
	metrics.RecordAuth("rejected")

	expected := `
		# HELP spoke_auth_requests_total Total number of authentication attempts by result
		# TYPE spoke_auth_requests_total counter
		spoke_auth_requests_total{result="accepted"} 2
		spoke_auth_requests_total{result="rejected"} 1
	`
	err := testutil.CollectAndCompare(metrics.AuthRequestsTotal, strings.NewReader(expected))
	assert.NoError(t, err)

	metrics.RecordCacheLookup("hit")
	metrics.RecordCacheLookup("miss")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("hit")))

	metrics.RecordCacheEviction("expired", 3)
	metrics.RecordCacheEviction("expired", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CacheEvictionsTotal.WithLabelValues("expired")))

	metrics.RecordCacheError("get")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheErrorsTotal.WithLabelValues("get")))

	metrics.ObserveUpstream("member", "200", 120*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("member", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.UpstreamRequestDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.RecordAuth("accepted")
		metrics.RecordCacheLookup("hit")
		metrics.RecordCacheEviction("expired", 1)
		metrics.RecordCacheError("set")
		metrics.ObserveUpstream("owner", "500", time.Second)
	})
}
