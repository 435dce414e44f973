// Package observability provides Prometheus metrics, health checks and
// OpenTelemetry tracing for the Bitbucket authentication adaptor.
//
// # Prometheus Metrics
//
// Collectors are registered on a caller supplied registry so several
// adaptors (or tests) never collide on the default one:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordAuth("accepted")
//
// Every Record method is safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker()
//	checker.Register("cache", redisStore, false)
//	status := checker.Check(ctx)
//
// A failing required dependency makes the status unhealthy; an optional one
// only degrades it.
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
//		Endpoint: "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// TraceFields adds trace_id and span_id to logrus entries.
package observability
