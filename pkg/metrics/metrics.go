package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes recorded by the consumer.
const (
	OutcomeSuccess      = "success"
	OutcomeRetry        = "retry"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeDuplicate    = "duplicate"
	OutcomeSkipped      = "skipped"
)

// Metrics holds the relay collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	degraded   prometheus.Counter
	decisions  *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// Option configures Metrics.
type Option func(*options)

type options struct {
	namespace       string
	runtimeMetrics  bool
	durationBuckets []float64
}

// WithNamespace prefixes every metric name. Default "notifyrelay".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithRuntimeMetrics registers the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(o *options) { o.runtimeMetrics = true }
}

// WithDurationBuckets overrides the delivery duration histogram buckets (seconds).
func WithDurationBuckets(b ...float64) Option {
	return func(o *options) { o.durationBuckets = b }
}

// New registers the relay collectors on a private registry.
func New(opts ...Option) *Metrics {
	o := &options{
		namespace:       "notifyrelay",
		durationBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "preference_lookup_degraded_total",
			Help:      "Preference lookups that failed and fell back to default preferences.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions per channel.",
		}, []string{"channel", "decision"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "dispatch_total",
			Help:      "Lane publishes by result.",
		}, []string{"lane", "result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "deliveries_total",
			Help:      "Processed lane messages by outcome.",
		}, []string{"channel", "lane", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in the delivery transport.",
			Buckets:   o.durationBuckets,
		}, []string{"channel", "lane"}),
	}

	m.registry.MustRegister(m.degraded, m.decisions, m.dispatched, m.deliveries, m.duration)
	if o.runtimeMetrics {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// DegradedLookup counts a preference lookup served from defaults.
func (m *Metrics) DegradedLookup() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}

// RoutingDecision counts one per-channel routing decision.
func (m *Metrics) RoutingDecision(channel, decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(channel, decision).Inc()
}

// Dispatch records a lane publish; ok=false means retries were exhausted.
func (m *Metrics) Dispatch(lane string, ok bool) {
	if m == nil {
		return
	}
	result := "published"
	if !ok {
		result = "failed"
	}
	m.dispatched.WithLabelValues(lane, result).Inc()
}

// Delivery records one processed lane message.
func (m *Metrics) Delivery(channel, lane, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, lane, outcome).Inc()
}

// SendDuration observes how long a transport call took.
func (m *Metrics) SendDuration(channel, lane string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(channel, lane).Observe(d.Seconds())
}
