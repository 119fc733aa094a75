// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hub

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/eventhub/internal/event"
)

// Command status labels.
const (
	StatusOK        = "ok"
	StatusMalformed = "malformed"
	StatusLimited   = "rate_limited"
	StatusDropped   = "dropped"
)

// Connections is the number of live client connections.
// Use RegisterMetrics to register this with a Prometheus registry.
var Connections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "eventhub_connections",
	Help: "Current number of connected clients",
})

// Commands counts client commands by action and outcome.
var Commands = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventhub_commands_total",
		Help: "Total number of client commands",
	},
	[]string{"action", "status"},
)

// TelemetryLabel is the event_name label shared by every telemetry event.
const TelemetryLabel = "telemetry"

// Events counts dispatched upstream events by event name. Telemetry names
// come from upstream and are folded into TelemetryLabel.
var Events = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventhub_events_total",
		Help: "Total number of events dispatched",
	},
	[]string{"event_name"},
)

// Deliveries counts service messages queued to client outboxes.
var Deliveries = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "eventhub_deliveries_total",
	Help: "Total number of service messages queued for clients",
})

// UnroutableEvents counts upstream frames dropped because they could not be
// classified.
var UnroutableEvents = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "eventhub_unroutable_events_total",
	Help: "Total number of upstream frames dropped as unroutable",
})

// OutboxDropped counts frames discarded by outbox overflow.
var OutboxDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventhub_outbox_dropped_total",
		Help: "Total number of frames dropped by full client outboxes",
	},
	[]string{"policy"},
)

// Heartbeats counts heartbeat ticks.
var Heartbeats = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "eventhub_heartbeats_total",
	Help: "Total number of heartbeat broadcasts",
})

// RegisterMetrics registers hub metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Connections, Commands, Events, Deliveries, UnroutableEvents, OutboxDropped, Heartbeats)
}

// RecordCommand increments the command counter.
func RecordCommand(action, status string) {
	Commands.WithLabelValues(action, status).Inc()
}

// eventLabel returns the bounded event_name label for e.
func eventLabel(e event.Event) string {
	if _, ok := e.(event.Telemetry); ok {
		return TelemetryLabel
	}
	return e.EventName()
}
