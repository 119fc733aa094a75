// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package upstream

import "github.com/prometheus/client_golang/prometheus"

// UpstreamOnline is 1 while a collector link is connected.
// Use RegisterMetrics to register this with a Prometheus registry.
var UpstreamOnline = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "eventhub_upstream_online",
		Help: "Whether the collector link of an endpoint is connected",
	},
	[]string{"endpoint"},
)

// UpstreamFrames counts frames received per endpoint.
var UpstreamFrames = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventhub_upstream_frames_total",
		Help: "Total number of frames received from collectors",
	},
	[]string{"endpoint"},
)

// UpstreamDials counts collector dial attempts by result.
var UpstreamDials = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventhub_upstream_dials_total",
		Help: "Total number of collector dial attempts",
	},
	[]string{"endpoint", "result"},
)

// RegisterMetrics registers upstream metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(UpstreamOnline, UpstreamFrames, UpstreamDials)
}
