// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hub

import (
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
)

// OverflowPolicy selects which message an outbox discards when full.
type OverflowPolicy string

// Overflow policies.
const (
	// DropOldest discards the oldest queued message to make room.
	DropOldest OverflowPolicy = "drop-oldest"
	// DropNewest discards the message being pushed.
	DropNewest OverflowPolicy = "drop-newest"
)

// DefaultOutboxSize is the per-connection buffer capacity used when none is
// configured.
const DefaultOutboxSize = 256

// ParseOverflowPolicy validates a policy name.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case DropOldest, DropNewest:
		return p, nil
	case "":
		return DropOldest, nil
	default:
		return "", oops.With("policy", s).Errorf("unknown overflow policy %q", s)
	}
}

// Outbox is a bounded FIFO of encoded frames awaiting delivery to one
// connection. Push never blocks.
type Outbox struct {
	mu      sync.Mutex
	ch      chan []byte
	policy  OverflowPolicy
	closed  bool
	dropped atomic.Uint64
}

// NewOutbox creates an outbox holding at most size frames.
func NewOutbox(size int, policy OverflowPolicy) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	if policy == "" {
		policy = DropOldest
	}
	return &Outbox{ch: make(chan []byte, size), policy: policy}
}

// Push enqueues frame, applying the overflow policy when full. It returns
// ErrOutboxClosed after Close.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}

	select {
	case o.ch <- frame:
		return nil
	default:
	}

	if o.policy == DropNewest {
		o.drop()
		return nil
	}

	// Only the consumer removes frames concurrently, so after evicting one
	// there is room for frame.
	select {
	case <-o.ch:
		o.drop()
	default:
	}
	select {
	case o.ch <- frame:
	default:
		o.drop()
	}
	return nil
}

func (o *Outbox) drop() {
	o.dropped.Add(1)
	OutboxDropped.WithLabelValues(string(o.policy)).Inc()
}

// C returns the channel the connection writer drains. It is closed by Close;
// frames queued before Close remain readable.
func (o *Outbox) C() <-chan []byte {
	return o.ch
}

// Close stops further pushes. It is safe to call more than once.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}

// Closed reports whether Close has been called.
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	return len(o.ch)
}

// Dropped returns how many frames the overflow policy has discarded.
func (o *Outbox) Dropped() uint64 {
	return o.dropped.Load()
}
