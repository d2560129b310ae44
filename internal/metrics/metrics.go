// Package metrics owns the prometheus collectors of the service.
// All methods are safe on a nil *Metrics so tests can skip wiring them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"
	OutcomeOutbox    = "outbox"
	OutcomeDropped   = "dropped"
	OutcomeRetry     = "retry"
)

type Metrics struct {
	registry           *prometheus.Registry
	checkouts          *prometheus.CounterVec
	checkoutDuration   prometheus.Histogram
	eventsPublished    *prometheus.CounterVec
	eventsConsumed     *prometheus.CounterVec
	orderTransitions   *prometheus.CounterVec
	reconcileActions   *prometheus.CounterVec
	outboxRelayBacklog prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Checkouts by outcome.",
		}, []string{"outcome"}),
		checkoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of checkout in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Published events by topic and outcome.",
		}, []string{"topic", "outcome"}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Consumed events by topic and outcome.",
		}, []string{"topic", "outcome"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Applied order state transitions.",
		}, []string{"from", "to", "trigger"}),
		reconcileActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_actions_total",
			Help: "Actions taken by the pending order reconciler.",
		}, []string{"action"}),
		outboxRelayBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_relay_batch_size",
			Help: "Messages picked up by the last outbox relay pass.",
		}),
	}
	reg.MustRegister(
		m.checkouts,
		m.checkoutDuration,
		m.eventsPublished,
		m.eventsConsumed,
		m.orderTransitions,
		m.reconcileActions,
		m.outboxRelayBacklog,
	)

	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

func (m *Metrics) Checkout(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
	m.checkoutDuration.Observe(took.Seconds())
}

func (m *Metrics) Published(topic, outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) Consumed(topic, outcome string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) Transition(from, to, trigger string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to, trigger).Inc()
}

func (m *Metrics) Reconciled(action string) {
	if m == nil {
		return
	}
	m.reconcileActions.WithLabelValues(action).Inc()
}

func (m *Metrics) OutboxBatch(n int) {
	if m == nil {
		return
	}
	m.outboxRelayBacklog.Set(float64(n))
}
