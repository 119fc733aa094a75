// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package upstream

import (
	"maps"
	"slices"
	"sync"
)

// ChangeFunc is called when an endpoint goes online or offline.
type ChangeFunc func(endpoint string, worlds []uint32, online bool)

// Tracker records the online state of every upstream endpoint. It is safe for
// concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	online   map[string]bool
	worlds   map[string][]uint32
	onChange ChangeFunc
}

// NewTracker creates a tracker for the given collectors, all initially
// offline. onChange may be nil.
func NewTracker(collectors []Collector, onChange ChangeFunc) *Tracker {
	t := &Tracker{
		online:   make(map[string]bool, len(collectors)),
		worlds:   make(map[string][]uint32, len(collectors)),
		onChange: onChange,
	}
	for _, c := range collectors {
		t.online[c.Endpoint] = false
		t.worlds[c.Endpoint] = slices.Clone(c.Worlds)
		UpstreamOnline.WithLabelValues(c.Endpoint).Set(0)
	}
	return t
}

// Set records the state of endpoint. The change callback runs only on a
// transition, outside the tracker lock.
func (t *Tracker) Set(endpoint string, online bool) {
	t.mu.Lock()
	prev, known := t.online[endpoint]
	t.online[endpoint] = online
	worlds := slices.Clone(t.worlds[endpoint])
	t.mu.Unlock()

	if known && prev == online {
		return
	}

	gauge := 0.0
	if online {
		gauge = 1
	}
	UpstreamOnline.WithLabelValues(endpoint).Set(gauge)

	if t.onChange != nil {
		t.onChange(endpoint, worlds, online)
	}
}

// Online returns a copy of the endpoint states.
func (t *Tracker) Online() map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.online)
}

// Endpoints returns the tracked endpoint names in sorted order.
func (t *Tracker) Endpoints() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.online))
}

// IsOnline reports the state of one endpoint.
func (t *Tracker) IsOnline(endpoint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online[endpoint]
}
