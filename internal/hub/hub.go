// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package hub fans realtime events out to client connections according to
// each connection's subscription, and broadcasts heartbeats and upstream link
// changes.
package hub

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/eventhub/internal/subscription"
	"github.com/holomush/eventhub/internal/wire"
	"github.com/holomush/eventhub/pkg/errutil"
)

// Config configures a Hub.
type Config struct {
	// OutboxSize is the per-connection buffer capacity.
	// Defaults to DefaultOutboxSize if zero.
	OutboxSize int

	// Overflow selects what a full outbox discards. Defaults to DropOldest.
	Overflow OverflowPolicy
}

// Hub owns the subscription registry. It is safe for concurrent use.
type Hub struct {
	cfg    Config
	reg    *registry
	tracer trace.Tracer
}

// New creates a hub.
func New(cfg Config) *Hub {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultOutboxSize
	}
	if cfg.Overflow == "" {
		cfg.Overflow = DropOldest
	}
	return &Hub{
		cfg:    cfg,
		reg:    newRegistry(),
		tracer: otel.Tracer("eventhub/hub"),
	}
}

// Conn is a registered client connection.
type Conn struct {
	hub *Hub
	e   *entry
}

// Connect registers a connection with an empty subscription and queues the
// initial connection state and subscription information messages.
func (h *Hub) Connect() (*Conn, error) {
	e := newEntry(NewConnID(), NewOutbox(h.cfg.OutboxSize, h.cfg.Overflow))

	// queued before registration so no broadcast can precede them
	h.send(e, wire.ConnectionStateChanged{Connected: true})
	h.send(e, e.filter.Load().Info())

	if !h.reg.add(e) {
		e.outbox.Close()
		return nil, ErrHubClosed()
	}
	return &Conn{hub: h, e: e}, nil
}

// Disconnect removes the connection. It is safe to call for connections the
// dispatcher has already removed.
func (h *Hub) Disconnect(id ulid.ULID) {
	h.reg.remove(id)
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	return h.reg.len()
}

// LinkChanged notifies connections that an upstream endpoint went online or
// offline. Only connections whose world selection covers one of worlds are
// notified; an endpoint with no known worlds notifies every connection.
func (h *Hub) LinkChanged(endpoint string, worlds []uint32, connected bool) int {
	targets := h.reg.collect(func(f *subscription.Filter) bool {
		if len(worlds) == 0 {
			return true
		}
		for _, w := range worlds {
			if f.Covers(w) {
				return true
			}
		}
		return false
	})

	msg := wire.ConnectionStateChanged{Connected: connected, Endpoint: endpoint, Worlds: worlds}
	data, err := wire.Encode(msg)
	if err != nil {
		errutil.LogError(slog.Default(), "encode connection state", err)
		return 0
	}

	delivered := 0
	for _, e := range targets {
		if h.push(e, data) {
			delivered++
		}
	}
	slog.Info("upstream link changed",
		"endpoint", endpoint,
		"connected", connected,
		"notified", delivered,
	)
	return delivered
}

// Close removes every connection, closing their outboxes, and refuses new
// connections.
func (h *Hub) Close() {
	for _, e := range h.reg.close() {
		e.outbox.Close()
	}
}

// send encodes and pushes one message to e.
func (h *Hub) send(e *entry, msg wire.OutboundMessage) bool {
	data, err := wire.Encode(msg)
	if err != nil {
		errutil.LogError(slog.Default(), "encode outbound message", oops.
			With("conn_id", e.id.String()).
			With("type", msg.Type()).
			Wrap(err))
		return false
	}
	return h.push(e, data)
}

// push queues data on e's outbox. An entry whose outbox is closed is removed.
func (h *Hub) push(e *entry, data []byte) bool {
	if err := e.outbox.Push(data); err != nil {
		if errors.Is(err, ErrOutboxClosed) {
			h.reg.remove(e.id)
		}
		return false
	}
	return true
}

// ID returns the connection identifier.
func (c *Conn) ID() ulid.ULID {
	return c.e.id
}

// Outbox returns the frames awaiting delivery. The channel is closed when the
// connection is removed.
func (c *Conn) Outbox() <-chan []byte {
	return c.e.outbox.C()
}

// Filter returns the currently published subscription.
func (c *Conn) Filter() *subscription.Filter {
	return c.e.filter.Load()
}

// Apply executes a client command. Subscription commands publish the new
// filter before the acknowledging subscription information is queued, so an
// acknowledged subscription is honored by every later dispatch.
func (c *Conn) Apply(ctx context.Context, cmd wire.Command) {
	_, span := c.hub.tracer.Start(ctx, "hub.apply", trace.WithAttributes(
		attrConn(c.e.id),
		attrAction(cmd.Action()),
	))
	defer span.End()

	c.e.mu.Lock()
	defer c.e.mu.Unlock()

	switch cmd := cmd.(type) {
	case wire.Echo:
		c.hub.send(c.e, wire.EchoReply{Payload: cmd.Payload})
	default:
		if !c.e.state.Apply(cmd) {
			RecordCommand(cmd.Action(), StatusDropped)
			return
		}
		f := c.e.state.Snapshot()
		if cur := c.e.filter.Load(); f.Equal(cur) {
			f = cur
		} else {
			c.e.filter.Store(f)
		}
		c.hub.send(c.e, f.Info())
	}
	RecordCommand(cmd.Action(), StatusOK)
}

// Reject queues a command error for a command that could not be applied.
func (c *Conn) Reject(action string, err error) {
	code, message := wire.ClientMessage(err)
	status := StatusMalformed
	if code == wire.CodeRateLimited {
		status = StatusLimited
	}
	RecordCommand(action, status)

	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	c.hub.send(c.e, wire.CommandError{Code: code, Message: message})
}

// Close disconnects the connection.
func (c *Conn) Close() {
	c.hub.Disconnect(c.e.id)
}
