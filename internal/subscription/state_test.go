// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/eventhub/internal/event"
	"github.com/holomush/eventhub/internal/wire"
)

func stateFrom(cmds ...wire.Command) *State {
	s := &State{}
	for _, cmd := range cmds {
		s.Apply(cmd)
	}
	return s
}

func TestState_InitialStateMatchesNothing(t *testing.T) {
	s := &State{}
	f := s.Snapshot()

	assert.True(t, f.Empty())
	assert.False(t, f.Matches(event.MapStateUpdate{World: 1}))
}

func TestState_SubscribeUnionsNames(t *testing.T) {
	s := stateFrom(
		wire.Subscribe{EventNames: []string{"MapStateUpdate"}},
		wire.Subscribe{EventNames: []string{"ContinentLock", "MapStateUpdate"}},
	)
	assert.Equal(t, []string{"ContinentLock", "MapStateUpdate"}, s.Snapshot().EventNames())
}

func TestState_SubscribeUnionsWorlds(t *testing.T) {
	s := stateFrom(
		wire.Subscribe{Worlds: wire.NewWorldSet(1)},
		wire.Subscribe{Worlds: wire.NewWorldSet(17, 1)},
	)
	assert.True(t, wire.SelectorEqual(wire.NewWorldSet(1, 17), s.Snapshot().Worlds()))
}

func TestState_SubscribeAbsentFieldsLeaveStateUnchanged(t *testing.T) {
	s := stateFrom(wire.Subscribe{EventNames: []string{"ContinentLock"}, Worlds: wire.NewWorldSet(10)})
	before := s.Snapshot()

	s.Subscribe(wire.Subscribe{})
	assert.True(t, before.Equal(s.Snapshot()))
}

func TestState_SubscribeIsIdempotent(t *testing.T) {
	cmds := []wire.Subscribe{
		{EventNames: []string{"MapStateUpdate"}, Worlds: wire.NewWorldSet(1, 13)},
		{Worlds: wire.AllWorlds{}},
		{EventNames: []string{}},
		{EventNames: []string{"A", "B"}},
	}

	for _, cmd := range cmds {
		once := stateFrom(wire.Subscribe{EventNames: []string{"Seed"}, Worlds: wire.NewWorldSet(5)}, cmd)
		twice := stateFrom(wire.Subscribe{EventNames: []string{"Seed"}, Worlds: wire.NewWorldSet(5)}, cmd, cmd)
		assert.True(t, once.Snapshot().Equal(twice.Snapshot()), "command %+v not idempotent", cmd)
	}
}

func TestState_AllWorldsAbsorbsExplicitIDs(t *testing.T) {
	s := stateFrom(wire.Subscribe{Worlds: wire.AllWorlds{}})

	s.Subscribe(wire.Subscribe{Worlds: wire.NewWorldSet(12)})
	assert.True(t, s.Snapshot().AllWorlds())

	s.Clear(wire.ClearSubscribe{Worlds: wire.NewWorldSet(12)})
	assert.True(t, s.Snapshot().AllWorlds(), "explicit clear must not narrow all worlds")
}

func TestState_AllWorldsReplacesExplicitSet(t *testing.T) {
	s := stateFrom(
		wire.Subscribe{Worlds: wire.NewWorldSet(1)},
		wire.Subscribe{Worlds: wire.AllWorlds{}},
	)
	assert.True(t, s.Snapshot().AllWorlds())
}

func TestState_ClearAllResets(t *testing.T) {
	priors := []*State{
		{},
		stateFrom(wire.Subscribe{EventNames: []string{"A"}}),
		stateFrom(wire.Subscribe{Worlds: wire.AllWorlds{}}),
		stateFrom(wire.Subscribe{EventNames: []string{"A", "B"}, Worlds: wire.NewWorldSet(1, 2, 3)}),
	}

	for _, s := range priors {
		s.Clear(wire.ClearSubscribe{All: true, EventNames: []string{"ignored"}, Worlds: wire.NewWorldSet(99)})
		assert.True(t, s.Snapshot().Empty())
		assert.True(t, s.Snapshot().Equal((&State{}).Snapshot()))
	}
}

func TestState_ClearRemovesNamesAndWorlds(t *testing.T) {
	s := stateFrom(wire.Subscribe{EventNames: []string{"A", "B"}, Worlds: wire.NewWorldSet(1, 2)})

	s.Clear(wire.ClearSubscribe{EventNames: []string{"A", "never-subscribed"}, Worlds: wire.NewWorldSet(2, 77)})

	f := s.Snapshot()
	assert.Equal(t, []string{"B"}, f.EventNames())
	assert.True(t, wire.SelectorEqual(wire.NewWorldSet(1), f.Worlds()))
}

func TestState_ClearLastWorldDropsSelection(t *testing.T) {
	s := stateFrom(wire.Subscribe{Worlds: wire.NewWorldSet(1)})
	s.Clear(wire.ClearSubscribe{Worlds: wire.NewWorldSet(1)})
	assert.Nil(t, s.Snapshot().Worlds())
}

func TestState_ClearSentinelDropsSelection(t *testing.T) {
	for _, sel := range []wire.WorldSelector{wire.AllWorlds{}, wire.NewWorldSet(4, 5)} {
		s := stateFrom(wire.Subscribe{EventNames: []string{"A"}, Worlds: sel})
		s.Clear(wire.ClearSubscribe{Worlds: wire.AllWorlds{}})

		f := s.Snapshot()
		assert.Nil(t, f.Worlds())
		assert.Equal(t, []string{"A"}, f.EventNames(), "names survive a worlds-only clear")
	}
}

func TestState_ClearOnEmptyIsNoop(t *testing.T) {
	s := &State{}
	s.Clear(wire.ClearSubscribe{EventNames: []string{"A"}, Worlds: wire.NewWorldSet(1)})
	assert.True(t, s.Snapshot().Empty())
}

func TestState_ApplyIgnoresOtherCommands(t *testing.T) {
	s := &State{}
	assert.False(t, s.Apply(wire.Echo{}))
	assert.True(t, s.Apply(wire.Subscribe{}))
}

func TestSnapshot_IsIsolatedFromLaterMutation(t *testing.T) {
	s := stateFrom(wire.Subscribe{EventNames: []string{"A"}, Worlds: wire.NewWorldSet(1)})
	f := s.Snapshot()

	s.Subscribe(wire.Subscribe{EventNames: []string{"B"}, Worlds: wire.NewWorldSet(2)})
	s.Clear(wire.ClearSubscribe{EventNames: []string{"A"}})

	assert.Equal(t, []string{"A"}, f.EventNames())
	assert.True(t, wire.SelectorEqual(wire.NewWorldSet(1), f.Worlds()))
}

func TestFilter_Matches(t *testing.T) {
	// A: names={MapStateUpdate}, worlds=all. B: names={}, worlds={12}.
	a := stateFrom(wire.Subscribe{EventNames: []string{event.NameMapStateUpdate}, Worlds: wire.AllWorlds{}}).Snapshot()
	b := stateFrom(wire.Subscribe{Worlds: wire.NewWorldSet(12)}).Snapshot()

	on12 := event.MapStateUpdate{World: 12}
	on99 := event.MapStateUpdate{World: 99}
	lock12 := event.ContinentLock{World: 12}

	assert.True(t, a.Matches(on12))
	assert.True(t, b.Matches(on12))
	assert.True(t, a.Matches(on99))
	assert.False(t, b.Matches(on99))
	assert.False(t, a.Matches(lock12), "name filter excludes other events")
	assert.True(t, b.Matches(lock12), "empty name filter matches every name")
}

func TestFilter_NamesWithoutWorldsMatchNothing(t *testing.T) {
	f := stateFrom(wire.Subscribe{EventNames: []string{event.NameContinentLock}}).Snapshot()
	assert.False(t, f.Matches(event.ContinentLock{World: 1}))
}

func TestFilter_Info(t *testing.T) {
	f := stateFrom(wire.Subscribe{EventNames: []string{"B", "A"}, Worlds: wire.AllWorlds{}}).Snapshot()
	info := f.Info()

	assert.Equal(t, []string{"A", "B"}, info.EventNames)
	assert.Equal(t, wire.AllWorlds{}, info.Worlds)
}

func TestFilter_NilIsSafe(t *testing.T) {
	var f *Filter
	assert.False(t, f.Matches(event.ContinentLock{}))
	assert.True(t, f.Empty())
	assert.Nil(t, f.EventNames())
	assert.False(t, f.AllWorlds())
}
