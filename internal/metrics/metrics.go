// Package metrics exposes Prometheus collectors for the bot's core flows.
//
// Label values are drawn from small closed sets (message kind, lookup
// result, escalation mode/outcome) so cardinality stays bounded.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deskbot"

var (
	// MessagesTotal counts inbound messages by kind.
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by kind.",
		},
		[]string{"kind"},
	)

	// HandleDuration records how long the dispatcher spends on one message.
	HandleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling one inbound message.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// LookupsTotal counts FAQ lookups by result: hit, miss or error.
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_lookups_total",
			Help:      "FAQ lookups by result.",
		},
		[]string{"result"},
	)

	// RegistrationsTotal counts identity claims by result: ok, invalid or error.
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Identity claims by result.",
		},
		[]string{"result"},
	)

	// EscalationsTotal counts escalations by mode and outcome.
	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalations of unanswered questions by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	// RateLimitedTotal counts messages dropped by the per-user limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Messages dropped by per-user flood control.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		HandleDuration,
		LookupsTotal,
		RegistrationsTotal,
		EscalationsTotal,
		RateLimitedTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
