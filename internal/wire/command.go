// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import (
	"bytes"
	"encoding/json"
)

// ServiceEvent is the only service inbound commands may address.
const ServiceEvent = "event"

// Inbound command actions.
const (
	ActionSubscribe      = "subscribe"
	ActionClearSubscribe = "clearSubscribe"
	ActionEcho           = "echo"
)

// Command is a decoded inbound command.
type Command interface {
	// Action returns the wire action name.
	Action() string

	isCommand()
}

// Subscribe widens a connection's subscription. A nil EventNames or Worlds
// means the field was absent and that part of the subscription is left
// unchanged.
type Subscribe struct {
	EventNames []string
	Worlds     WorldSelector
}

func (Subscribe) Action() string { return ActionSubscribe }
func (Subscribe) isCommand()     {}

// ClearSubscribe narrows a connection's subscription. When All is set the
// other fields are ignored.
type ClearSubscribe struct {
	All        bool
	EventNames []string
	Worlds     WorldSelector
}

func (ClearSubscribe) Action() string { return ActionClearSubscribe }
func (ClearSubscribe) isCommand()     {}

// Echo asks the hub to send Payload straight back.
type Echo struct {
	Payload json.RawMessage
}

func (Echo) Action() string { return ActionEcho }
func (Echo) isCommand()     {}

type rawCommand struct {
	Service    string          `json:"service"`
	Action     string          `json:"action"`
	EventNames []string        `json:"eventNames"`
	Worlds     json.RawMessage `json:"worlds"`
	All        bool            `json:"all"`
	Payload    json.RawMessage `json:"payload"`
}

// ParseCommand decodes one inbound command frame. Every failure carries code
// MALFORMED_COMMAND.
func ParseCommand(data []byte) (Command, error) {
	if err := validateCommand(data); err != nil {
		return nil, err
	}

	var raw rawCommand
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("command must be a JSON object", err)
	}
	for _, name := range raw.EventNames {
		if name == "" {
			return nil, ErrMalformedCommand("event names must not be empty")
		}
	}

	switch raw.Action {
	case ActionSubscribe:
		worlds, err := DecodeSelector(raw.Worlds)
		if err != nil {
			return nil, err
		}
		return Subscribe{EventNames: raw.EventNames, Worlds: worlds}, nil
	case ActionClearSubscribe:
		worlds, err := DecodeSelector(raw.Worlds)
		if err != nil {
			return nil, err
		}
		return ClearSubscribe{All: raw.All, EventNames: raw.EventNames, Worlds: worlds}, nil
	case ActionEcho:
		payload := raw.Payload
		if len(bytes.TrimSpace(payload)) == 0 {
			payload = json.RawMessage("null")
		}
		return Echo{Payload: payload}, nil
	}
	return nil, ErrMalformedCommand("unknown action " + raw.Action)
}

// ActionOf returns the action a command frame names when it is one of the
// known actions, and "" otherwise. It reads only the action field, so it
// works on frames that fail ParseCommand.
func ActionOf(data []byte) string {
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	switch head.Action {
	case ActionSubscribe, ActionClearSubscribe, ActionEcho:
		return head.Action
	}
	return ""
}

// MarshalCommand encodes a command in its wire form. Clients and tests use it
// to build frames.
func MarshalCommand(cmd Command) ([]byte, error) {
	raw := rawCommand{Service: ServiceEvent, Action: cmd.Action()}

	var worlds WorldSelector
	switch c := cmd.(type) {
	case Subscribe:
		raw.EventNames, worlds = c.EventNames, c.Worlds
	case ClearSubscribe:
		raw.All, raw.EventNames, worlds = c.All, c.EventNames, c.Worlds
	case Echo:
		raw.Payload = c.Payload
	}
	if worlds != nil {
		enc, err := EncodeSelector(worlds)
		if err != nil {
			return nil, err
		}
		raw.Worlds = enc
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, malformed("unencodable command", err)
	}
	return data, nil
}
