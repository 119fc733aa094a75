// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package upstream connects to the collector processes that produce realtime
// events and tracks their liveness.
package upstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Reconnect backoff bounds.
const (
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffCap  = 30 * time.Second
	backoffJitter      = 10
)

// Collector describes one upstream event source.
type Collector struct {
	// Endpoint names the collector in heartbeats, e.g.
	// "EventServerEndpoint_Connery_1".
	Endpoint string
	// URL is the collector websocket address.
	URL string
	// Worlds lists the world ids served by the collector.
	Worlds []uint32
}

// Link maintains the connection to one collector, reconnecting with
// exponential backoff until its context is cancelled.
type Link struct {
	collector   Collector
	tracker     *Tracker
	dialer      *websocket.Dialer
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewLink creates a link reporting its state to tracker.
func NewLink(c Collector, tracker *Tracker) *Link {
	return &Link{
		collector:   c,
		tracker:     tracker,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
	}
}

func (l *Link) backoff() retry.Backoff {
	b := retry.NewExponential(l.backoffBase)
	b = retry.WithJitterPercent(backoffJitter, b)
	return retry.WithCappedDuration(l.backoffCap, b)
}

// Run forwards collector frames to out until ctx is cancelled. Dial failures
// are retried with backoff; the backoff restarts after every established
// session.
func (l *Link) Run(ctx context.Context, out chan<- []byte) error {
	for ctx.Err() == nil {
		err := retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
			conn, err := l.dial(ctx)
			if err != nil {
				return retry.RetryableError(err)
			}
			l.session(ctx, conn, out)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			return oops.With("endpoint", l.collector.Endpoint).Wrapf(err, "collector link")
		}
	}
	return nil
}

func (l *Link) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := l.dialer.DialContext(ctx, l.collector.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		UpstreamDials.WithLabelValues(l.collector.Endpoint, "error").Inc()
		slog.Debug("collector dial failed", "endpoint", l.collector.Endpoint, "error", err)
		return nil, oops.With("endpoint", l.collector.Endpoint).Wrapf(err, "dial collector")
	}
	UpstreamDials.WithLabelValues(l.collector.Endpoint, "ok").Inc()
	return conn, nil
}

// session reads frames until the link breaks or ctx is cancelled.
func (l *Link) session(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	endpoint := l.collector.Endpoint
	l.tracker.Set(endpoint, true)
	slog.Info("collector connected", "endpoint", endpoint)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	defer func() {
		_ = conn.Close()
		l.tracker.Set(endpoint, false)
		slog.Info("collector disconnected", "endpoint", endpoint)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("collector read failed", "endpoint", endpoint, "error", err)
			}
			return
		}
		UpstreamFrames.WithLabelValues(endpoint).Inc()

		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}
