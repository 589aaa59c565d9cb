// Package statusapi serves the relay's HTTP surface: delivery status per
// event, optional event submission and dead-letter lookup, health probes and
// Prometheus metrics.
//
// Delivery failures never surface to event producers; this API is how an
// operator observes them.
package statusapi
