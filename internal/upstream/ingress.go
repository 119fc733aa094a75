// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package upstream

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultFrameBuffer is the capacity of the merged frame channel.
const DefaultFrameBuffer = 1024

// Ingress merges the frames of every collector link into one channel.
type Ingress struct {
	links  []*Link
	frames chan []byte
}

// NewIngress creates links for the collectors, reporting to tracker.
func NewIngress(collectors []Collector, tracker *Tracker, buffer int) *Ingress {
	if buffer <= 0 {
		buffer = DefaultFrameBuffer
	}
	in := &Ingress{frames: make(chan []byte, buffer)}
	for _, c := range collectors {
		in.links = append(in.links, NewLink(c, tracker))
	}
	return in
}

// Frames returns the merged frame channel. It is closed when Run returns.
func (in *Ingress) Frames() <-chan []byte {
	return in.frames
}

// Run runs every link until ctx is cancelled or one fails permanently.
func (in *Ingress) Run(ctx context.Context) error {
	defer close(in.frames)

	g, ctx := errgroup.WithContext(ctx)
	for _, l := range in.links {
		g.Go(func() error {
			return l.Run(ctx, in.frames)
		})
	}
	return g.Wait()
}
