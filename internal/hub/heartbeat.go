// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/holomush/eventhub/internal/wire"
	"github.com/holomush/eventhub/pkg/errutil"
)

// DefaultHeartbeatInterval is the heartbeat period used when none is
// configured.
const DefaultHeartbeatInterval = 30 * time.Second

// Liveness reports the online state of each upstream endpoint.
type Liveness interface {
	Online() map[string]bool
}

// Heartbeater periodically sends a heartbeat to every connection regardless
// of its subscription.
type Heartbeater struct {
	hub      *Hub
	live     Liveness
	interval time.Duration
	now      func() time.Time
}

// NewHeartbeater creates a heartbeater. A nil live reports no endpoints.
func NewHeartbeater(h *Hub, live Liveness, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeater{hub: h, live: live, interval: interval, now: time.Now}
}

// Beat sends one heartbeat and returns the number of connections it was
// queued for.
func (b *Heartbeater) Beat(ctx context.Context) int {
	online := map[string]bool{}
	if b.live != nil {
		for endpoint, up := range b.live.Online() {
			online[endpoint] = up
		}
	}

	data, err := wire.Encode(wire.Heartbeat{Online: online, Timestamp: b.now().Unix()})
	if err != nil {
		errutil.Log(ctx, slog.Default(), slog.LevelError, "encode heartbeat", err)
		return 0
	}

	Heartbeats.Inc()
	delivered := 0
	for _, e := range b.hub.reg.collect(nil) {
		if b.hub.push(e, data) {
			delivered++
		}
	}
	return delivered
}

// Run sends a heartbeat every interval until ctx is cancelled.
func (b *Heartbeater) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Beat(ctx)
		}
	}
}
