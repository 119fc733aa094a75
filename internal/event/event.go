// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package event contains the realtime game-world events relayed by the hub.
package event

import "strconv"

// Event names with a dedicated variant.
const (
	NameMapStateUpdate   = "MapStateUpdate"
	NameContinentLock    = "ContinentLock"
	NamePopulationUpdate = "PopulationUpdate"
)

// Event is a realtime occurrence scoped to exactly one world.
// The set of implementations is closed to this package.
type Event interface {
	// EventName is the discriminator used for subscription filtering.
	EventName() string
	// WorldID identifies the world (server shard) the event happened on.
	WorldID() uint32
	// Timestamp is the generation time in Unix seconds.
	Timestamp() int64

	isEvent()
}

// Faction identifies a playable faction.
type Faction uint8

// MapStateUpdate reports a facility changing hands on a zone.
type MapStateUpdate struct {
	World        uint32
	Zone         uint32
	Facility     uint32
	OldFaction   Faction
	NewFaction   Faction
	DurationHeld int64 // seconds the previous owner held the facility
	Time         int64
}

func (e MapStateUpdate) EventName() string { return NameMapStateUpdate }
func (e MapStateUpdate) WorldID() uint32   { return e.World }
func (e MapStateUpdate) Timestamp() int64  { return e.Time }
func (MapStateUpdate) isEvent()            {}

// ContinentLock reports a zone being locked by a faction.
type ContinentLock struct {
	World   uint32
	Zone    uint32
	Faction Faction
	Time    int64
}

func (e ContinentLock) EventName() string { return NameContinentLock }
func (e ContinentLock) WorldID() uint32   { return e.World }
func (e ContinentLock) Timestamp() int64  { return e.Time }
func (ContinentLock) isEvent()            {}

// PopulationUpdate carries per-faction online counts for a world.
type PopulationUpdate struct {
	World  uint32
	Counts map[Faction]int
	Time   int64
}

func (e PopulationUpdate) EventName() string { return NamePopulationUpdate }
func (e PopulationUpdate) WorldID() uint32   { return e.World }
func (e PopulationUpdate) Timestamp() int64  { return e.Time }
func (PopulationUpdate) isEvent()            {}

// Telemetry is a generic event whose attributes are relayed verbatim.
type Telemetry struct {
	Name       string
	World      uint32
	Time       int64
	Attributes map[string]any
}

func (e Telemetry) EventName() string { return e.Name }
func (e Telemetry) WorldID() uint32   { return e.World }
func (e Telemetry) Timestamp() int64  { return e.Time }
func (Telemetry) isEvent()            {}

// Payload renders the client-facing payload object for an event.
// Numeric identifiers are encoded as decimal strings.
func Payload(e Event) map[string]any {
	p := map[string]any{
		"event_name": e.EventName(),
		"world_id":   utoa(uint64(e.WorldID())),
		"timestamp":  strconv.FormatInt(e.Timestamp(), 10),
	}

	switch v := e.(type) {
	case MapStateUpdate:
		p["zone_id"] = utoa(uint64(v.Zone))
		p["facility_id"] = utoa(uint64(v.Facility))
		p["old_faction_id"] = utoa(uint64(v.OldFaction))
		p["new_faction_id"] = utoa(uint64(v.NewFaction))
		p["duration_held"] = strconv.FormatInt(v.DurationHeld, 10)
	case ContinentLock:
		p["zone_id"] = utoa(uint64(v.Zone))
		p["faction_id"] = utoa(uint64(v.Faction))
	case PopulationUpdate:
		counts := make(map[string]string, len(v.Counts))
		for faction, n := range v.Counts {
			counts[utoa(uint64(faction))] = strconv.Itoa(n)
		}
		p["population"] = counts
	case Telemetry:
		if len(v.Attributes) > 0 {
			attrs := make(map[string]any, len(v.Attributes))
			for k, a := range v.Attributes {
				attrs[k] = a
			}
			p["attributes"] = attrs
		}
	}
	return p
}

func utoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
