// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package wire implements the client-facing wire format: the world selector
// codec, inbound commands and outbound message envelopes.
package wire

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"

	"github.com/samber/oops"
)

// AllWorldsToken is the reserved wire token selecting every world.
// Matching is case-sensitive.
const AllWorldsToken = "all"

// WorldSelector selects the worlds a connection receives events for.
// It is either AllWorlds or a WorldSet. A nil WorldSelector means no value
// was supplied.
type WorldSelector interface {
	// Contains reports whether the selector covers the world.
	Contains(world uint32) bool

	isWorldSelector()
}

// AllWorlds selects every world.
type AllWorlds struct{}

// Contains always returns true.
func (AllWorlds) Contains(uint32) bool { return true }
func (AllWorlds) isWorldSelector()     {}

// WorldSet selects an explicit set of worlds.
type WorldSet map[uint32]struct{}

// NewWorldSet builds a WorldSet from ids.
func NewWorldSet(ids ...uint32) WorldSet {
	s := make(WorldSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether world is in the set.
func (s WorldSet) Contains(world uint32) bool {
	_, ok := s[world]
	return ok
}

func (WorldSet) isWorldSelector() {}

// IDs returns the set members in ascending order.
func (s WorldSet) IDs() []uint32 {
	ids := make([]uint32, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns an independent copy of the set.
func (s WorldSet) Clone() WorldSet {
	c := make(WorldSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// SelectorEqual reports whether two selectors select the same worlds in the
// same way. A nil selector equals only nil.
func SelectorEqual(a, b WorldSelector) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case AllWorlds:
		_, ok := b.(AllWorlds)
		return ok
	case WorldSet:
		bv, ok := b.(WorldSet)
		if !ok || len(av) != len(bv) {
			return false
		}
		for id := range av {
			if _, ok := bv[id]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

// DecodeSelector decodes a wire world selector.
//
//   - absent or null decodes to nil
//   - ["all"] decodes to AllWorlds
//   - an array of decimal world ids (strings or numbers) decodes to a WorldSet
//
// Anything else fails with code MALFORMED_COMMAND.
func DecodeSelector(raw json.RawMessage) (WorldSelector, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil //nolint:nilnil // absence is a valid, distinct outcome
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, malformed("worlds must be an array", err)
	}

	set := make(WorldSet, len(items))
	sawSentinel := false
	for i, item := range items {
		token, err := selectorToken(item)
		if err != nil {
			return nil, malformedAt(i, err)
		}
		if token == AllWorldsToken {
			sawSentinel = true
			continue
		}
		id, err := strconv.ParseUint(token, 10, 32)
		if err != nil {
			return nil, malformedAt(i, err)
		}
		set[uint32(id)] = struct{}{}
	}

	if sawSentinel {
		if len(items) != 1 {
			return nil, ErrMalformedCommand("\"all\" cannot be combined with world ids")
		}
		return AllWorlds{}, nil
	}
	return set, nil
}

// selectorToken returns the textual form of one selector element. Strings
// are returned verbatim, JSON numbers as their literal text.
func selectorToken(item json.RawMessage) (string, error) {
	if len(item) > 0 && item[0] == '"' {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return "", err //nolint:wrapcheck // wrapped by caller
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(item, &n); err != nil {
		return "", err //nolint:wrapcheck // wrapped by caller
	}
	return n.String(), nil
}

// EncodeSelector is the inverse of DecodeSelector. A WorldSet is encoded in
// ascending id order.
func EncodeSelector(sel WorldSelector) ([]byte, error) {
	tokens := selectorTokens(sel)
	if tokens == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return nil, oops.Wrapf(err, "encode world selector")
	}
	return data, nil
}

// selectorTokens renders a selector as wire tokens, nil for no selector.
func selectorTokens(sel WorldSelector) []string {
	switch v := sel.(type) {
	case AllWorlds:
		return []string{AllWorldsToken}
	case WorldSet:
		tokens := make([]string, 0, len(v))
		for _, id := range v.IDs() {
			tokens = append(tokens, strconv.FormatUint(uint64(id), 10))
		}
		return tokens
	}
	return nil
}

func malformedAt(index int, cause error) error {
	return oops.Code(CodeMalformedCommand).
		With("index", index).
		With("message", "worlds must contain \"all\" or decimal world ids").
		Wrapf(cause, "invalid world selector element %d", index)
}
