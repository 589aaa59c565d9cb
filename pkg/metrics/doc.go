// Package metrics defines the relay's Prometheus collectors.
//
// Collectors live on a private registry rather than the global one, so
// several relays (or tests) can coexist in one process:
//
//	m := metrics.New(metrics.WithRuntimeMetrics())
//	http.Handle("/metrics", m.Handler())
//
// Every recording method is safe to call on a nil *Metrics.
package metrics
