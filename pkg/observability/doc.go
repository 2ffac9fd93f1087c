// Package observability provides structured logging, Prometheus metrics, and
// graceful shutdown coordination.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("registry", name).Info("registry loaded")
//
// Context-aware logging:
//
//	logger := observability.FromContext(ctx)
//	logger.WithError(err).Error("load failed")
//
// # Prometheus Metrics
//
// Initialize metrics against a registry and expose them:
//
//	promRegistry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(promRegistry)
//	mux.Handle("/metrics", observability.Handler(promRegistry))
//
// Registry metrics:
//
//	metrics.RegistryLoadsTotal.WithLabelValues(name).Inc()
//	metrics.RolesTotal.Set(float64(count))
//
// # Graceful Shutdown
//
// ShutdownManager listens for SIGINT/SIGTERM, drains the HTTP server within
// the configured timeout, and runs registered shutdown functions.
package observability
