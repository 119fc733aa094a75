// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package subscription holds the per-connection event filter and the merge
// and clear rules applied by client commands.
//
// An empty event-name set matches every event name. A connection with no
// world selection matches nothing, so a fresh connection receives no events
// until it selects worlds.
package subscription

import (
	"maps"
	"slices"

	"github.com/holomush/eventhub/internal/event"
	"github.com/holomush/eventhub/internal/wire"
)

// State is the mutable subscription of one connection. The zero value is the
// empty initial state. State is not safe for concurrent use; the owning
// connection serializes access.
type State struct {
	names  map[string]struct{}
	worlds wire.WorldSelector
}

// Apply applies a subscription command and reports whether cmd was one.
func (s *State) Apply(cmd wire.Command) bool {
	switch c := cmd.(type) {
	case wire.Subscribe:
		s.Subscribe(c)
	case wire.ClearSubscribe:
		s.Clear(c)
	default:
		return false
	}
	return true
}

// Subscribe merges cmd into the state. Absent fields leave their part of the
// state unchanged. Once all worlds are selected, explicit world ids do not
// narrow the selection; only a clear can.
func (s *State) Subscribe(cmd wire.Subscribe) {
	if cmd.EventNames != nil {
		if s.names == nil {
			s.names = make(map[string]struct{}, len(cmd.EventNames))
		}
		for _, name := range cmd.EventNames {
			s.names[name] = struct{}{}
		}
	}

	switch sel := cmd.Worlds.(type) {
	case wire.AllWorlds:
		s.worlds = wire.AllWorlds{}
	case wire.WorldSet:
		switch cur := s.worlds.(type) {
		case wire.AllWorlds:
			// all worlds absorbs explicit ids
		case wire.WorldSet:
			for id := range sel {
				cur[id] = struct{}{}
			}
		default:
			if len(sel) > 0 {
				s.worlds = sel.Clone()
			}
		}
	}
}

// Clear removes cmd's names and worlds from the state. All resets the state
// entirely. Clearing the all-worlds token drops the world selection; explicit
// ids are not removed from an all-worlds selection.
func (s *State) Clear(cmd wire.ClearSubscribe) {
	if cmd.All {
		*s = State{}
		return
	}

	for _, name := range cmd.EventNames {
		delete(s.names, name)
	}

	switch sel := cmd.Worlds.(type) {
	case wire.AllWorlds:
		s.worlds = nil
	case wire.WorldSet:
		cur, ok := s.worlds.(wire.WorldSet)
		if !ok {
			return
		}
		for id := range sel {
			delete(cur, id)
		}
		if len(cur) == 0 {
			s.worlds = nil
		}
	}
}

// Snapshot returns an immutable copy of the current state.
func (s *State) Snapshot() *Filter {
	f := &Filter{names: maps.Clone(s.names)}
	switch w := s.worlds.(type) {
	case wire.AllWorlds:
		f.worlds = w
	case wire.WorldSet:
		f.worlds = w.Clone()
	}
	return f
}

// Filter is an immutable subscription snapshot. The zero value matches
// nothing.
type Filter struct {
	names  map[string]struct{}
	worlds wire.WorldSelector
}

// Matches reports whether e passes the filter.
func (f *Filter) Matches(e event.Event) bool {
	if f == nil || !f.Covers(e.WorldID()) {
		return false
	}
	if len(f.names) == 0 {
		return true
	}
	_, ok := f.names[e.EventName()]
	return ok
}

// Covers reports whether the world selection includes world.
func (f *Filter) Covers(world uint32) bool {
	if f == nil || f.worlds == nil {
		return false
	}
	return f.worlds.Contains(world)
}

// AllWorlds reports whether every world is selected.
func (f *Filter) AllWorlds() bool {
	if f == nil {
		return false
	}
	_, ok := f.worlds.(wire.AllWorlds)
	return ok
}

// EventNames returns the selected event names in sorted order.
func (f *Filter) EventNames() []string {
	if f == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(f.names))
}

// Worlds returns the world selection; nil means none.
func (f *Filter) Worlds() wire.WorldSelector {
	if f == nil {
		return nil
	}
	return f.worlds
}

// Empty reports whether the filter equals the initial state.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.names) == 0 && f.worlds == nil)
}

// Equal reports whether two filters select the same events.
func (f *Filter) Equal(o *Filter) bool {
	if f.Empty() || o.Empty() {
		return f.Empty() && o.Empty()
	}
	return maps.Equal(f.names, o.names) && wire.SelectorEqual(f.worlds, o.worlds)
}

// Info renders the filter as a subscription information message.
func (f *Filter) Info() wire.SubscriptionInformation {
	return wire.SubscriptionInformation{
		EventNames: f.EventNames(),
		Worlds:     f.Worlds(),
	}
}
