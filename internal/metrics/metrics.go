// Package metrics holds the Prometheus collectors of the bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event outcomes
const (
	OutcomeDispatched = "dispatched"
	OutcomeDropped    = "dropped"
	OutcomeFailed     = "failed"
)

// Metrics groups the bridge collectors
type Metrics struct {
	ServersActive prometheus.Gauge
	Events        *prometheus.CounterVec
	Sends         *prometheus.CounterVec
	PollDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg keeps
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ServersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wsbridge",
			Name:      "servers_active",
			Help:      "Number of WebSocket servers currently listening.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsbridge",
			Name:      "events_total",
			Help:      "Transport events by kind and dispatch outcome.",
		}, []string{"kind", "outcome"}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsbridge",
			Name:      "sends_total",
			Help:      "Send calls by result.",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wsbridge",
			Name:      "poll_duration_seconds",
			Help:      "Time spent in one poll tick.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ServersActive, m.Events, m.Sends, m.PollDuration)
	}
	return m
}

// Event counts one transport event
func (m *Metrics) Event(kind, outcome string) {
	m.Events.WithLabelValues(kind, outcome).Inc()
}

// Send counts one send call
func (m *Metrics) Send(err error) {
	if err != nil {
		m.Sends.WithLabelValues("error").Inc()
		return
	}
	m.Sends.WithLabelValues("ok").Inc()
}

// ObservePoll records the duration of a poll tick started at start
func (m *Metrics) ObservePoll(start time.Time) {
	m.PollDuration.Observe(time.Since(start).Seconds())
}
