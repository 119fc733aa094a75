// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package event

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/samber/oops"
)

// CodeUnroutable marks upstream frames the hub cannot classify.
const CodeUnroutable = "UNROUTABLE_EVENT"

// KindTelemetry marks a frame as a generic telemetry event.
const KindTelemetry = "telemetry"

// number accepts a JSON number or a decimal string.
type number struct {
	value uint64
	set   bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err //nolint:wrapcheck // wrapped by Decode
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err //nolint:wrapcheck // wrapped by Decode
	}
	n.value, n.set = v, true
	return nil
}

type frame struct {
	EventName    string            `json:"event_name"`
	Kind         string            `json:"kind"`
	WorldID      number            `json:"world_id"`
	Timestamp    number            `json:"timestamp"`
	ZoneID       number            `json:"zone_id"`
	FacilityID   number            `json:"facility_id"`
	OldFaction   number            `json:"old_faction_id"`
	NewFaction   number            `json:"new_faction_id"`
	FactionID    number            `json:"faction_id"`
	DurationHeld number            `json:"duration_held"`
	Population   map[string]number `json:"population"`
	Attributes   map[string]any    `json:"attributes"`
}

// Decode parses one upstream frame into an Event. Frames that cannot be
// classified fail with code UNROUTABLE_EVENT.
func Decode(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, oops.Code(CodeUnroutable).Wrapf(err, "decode upstream frame")
	}
	if f.EventName == "" {
		return nil, oops.Code(CodeUnroutable).Errorf("upstream frame has no event_name")
	}
	if !f.WorldID.set || f.WorldID.value > maxWorldID {
		return nil, oops.Code(CodeUnroutable).
			With("event_name", f.EventName).
			Errorf("upstream frame has no valid world_id")
	}
	world := uint32(f.WorldID.value)
	ts := int64(f.Timestamp.value) //nolint:gosec // seconds since epoch fit in int64

	switch f.EventName {
	case NameMapStateUpdate:
		return MapStateUpdate{
			World:        world,
			Zone:         uint32(f.ZoneID.value),     //nolint:gosec // zone ids are 32-bit upstream
			Facility:     uint32(f.FacilityID.value), //nolint:gosec // facility ids are 32-bit upstream
			OldFaction:   Faction(f.OldFaction.value),
			NewFaction:   Faction(f.NewFaction.value),
			DurationHeld: int64(f.DurationHeld.value), //nolint:gosec // bounded by match length
			Time:         ts,
		}, nil
	case NameContinentLock:
		return ContinentLock{
			World:   world,
			Zone:    uint32(f.ZoneID.value), //nolint:gosec // zone ids are 32-bit upstream
			Faction: Faction(f.FactionID.value),
			Time:    ts,
		}, nil
	case NamePopulationUpdate:
		counts := make(map[Faction]int, len(f.Population))
		for key, n := range f.Population {
			faction, err := strconv.ParseUint(key, 10, 8)
			if err != nil {
				return nil, oops.Code(CodeUnroutable).
					With("event_name", f.EventName).
					Wrapf(err, "invalid faction key %q", key)
			}
			counts[Faction(faction)] = int(n.value) //nolint:gosec // population counts are small
		}
		return PopulationUpdate{World: world, Counts: counts, Time: ts}, nil
	}

	if f.Kind == KindTelemetry {
		return Telemetry{
			Name:       f.EventName,
			World:      world,
			Time:       ts,
			Attributes: f.Attributes,
		}, nil
	}

	return nil, oops.Code(CodeUnroutable).
		With("event_name", f.EventName).
		Errorf("unknown event %q", f.EventName)
}

const maxWorldID = 1<<32 - 1
