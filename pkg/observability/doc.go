// Package observability provides the logger factory, Prometheus metrics,
// optional OTLP tracing and panic helpers shared by the identity client
// packages.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, observability.TextFormat, os.Stderr)
//	logger.WithField("request_id", reqID).Debug("request sent")
//
// # Metrics
//
//	metrics := observability.NewClientMetrics(prometheus.NewRegistry())
//	metrics.RecordRequest("GET", 200, elapsed)
//	metrics.RecordAssignment("user_roles", "assign", err)
//
// # Tracing
//
// Tracing is off unless an OTLP endpoint is configured:
//
//	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
//		Endpoint: "localhost:4317",
//		Insecure: true,
//	}, logger)
//	defer shutdown(ctx)
//
// WithTraceContext tags log lines with the current trace and span ids.
//
// # Related Packages
//
//   - pkg/config: log level, format and OTLP endpoint
//   - pkg/gateway: records request metrics
//   - pkg/reconciler: records assignment metrics
//   - pkg/async: recovers panics with RecoverPanic and PanicError
package observability
