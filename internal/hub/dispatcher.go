// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hub

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/eventhub/internal/event"
	"github.com/holomush/eventhub/internal/subscription"
	"github.com/holomush/eventhub/internal/wire"
	"github.com/holomush/eventhub/pkg/errutil"
)

func attrConn(id ulid.ULID) attribute.KeyValue {
	return attribute.String("conn.id", id.String())
}

func attrAction(action string) attribute.KeyValue {
	return attribute.String("command.action", action)
}

// Dispatch delivers e to every connection whose subscription matches it and
// returns the number of connections it was queued for. Slow connections do
// not delay others: pushes never block.
func (h *Hub) Dispatch(ctx context.Context, e event.Event) int {
	_, span := h.tracer.Start(ctx, "hub.dispatch", trace.WithAttributes(
		attribute.String("event.name", e.EventName()),
		attribute.Int64("event.world_id", int64(e.WorldID())),
	))
	defer span.End()

	Events.WithLabelValues(eventLabel(e)).Inc()

	targets := h.reg.collect(func(f *subscription.Filter) bool {
		return f.Matches(e)
	})
	if len(targets) == 0 {
		return 0
	}

	data, err := wire.Encode(wire.ServiceMessage{Event: e})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		errutil.LogError(slog.Default(), "encode service message", oops.
			With("event_name", e.EventName()).
			Wrap(err))
		return 0
	}

	delivered := 0
	for _, t := range targets {
		if h.push(t, data) {
			delivered++
		}
	}
	Deliveries.Add(float64(delivered))
	span.SetAttributes(attribute.Int("dispatch.delivered", delivered))
	return delivered
}

// DispatchFrame decodes a raw upstream frame and dispatches it. Frames that
// cannot be decoded are logged and dropped.
func (h *Hub) DispatchFrame(ctx context.Context, frame []byte) int {
	e, err := event.Decode(frame)
	if err != nil {
		UnroutableEvents.Inc()
		errutil.Log(ctx, slog.Default(), slog.LevelWarn, "dropping unroutable event", err,
			slog.Int("frame_bytes", len(frame)))
		return 0
	}
	return h.Dispatch(ctx, e)
}

// Run dispatches frames in arrival order until ctx is cancelled or frames is
// closed. A single Run preserves per-connection ordering.
func (h *Hub) Run(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			h.DispatchFrame(ctx, frame)
		}
	}
}
