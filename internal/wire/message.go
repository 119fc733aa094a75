// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import (
	"encoding/json"
	"slices"
	"strconv"

	"github.com/samber/oops"

	"github.com/holomush/eventhub/internal/event"
)

// ServicePush addresses hub connection-state notifications.
const ServicePush = "push"

// Outbound message types. Together with the service they form the fixed
// discriminator pair of each message.
const (
	TypeConnectionStateChanged = "connectionStateChanged"
	TypeHeartbeat              = "heartbeat"
	TypeServiceMessage         = "serviceMessage"
	TypeSubscription           = "subscription"
	TypeError                  = "error"
	TypeEcho                   = "echo"
)

// OutboundMessage is a message the hub sends to a client connection.
type OutboundMessage interface {
	// Service and Type are the discriminator pair.
	Service() string
	Type() string

	wireForm() any
}

// ConnectionStateChanged reports a change in link state. Endpoint and Worlds
// are set when the change concerns an upstream collector.
type ConnectionStateChanged struct {
	Connected bool
	Endpoint  string
	Worlds    []uint32
}

// Heartbeat is the periodic liveness broadcast.
type Heartbeat struct {
	Online    map[string]bool
	Timestamp int64
}

// ServiceMessage wraps one relayed event.
type ServiceMessage struct {
	Event event.Event
}

// SubscriptionInformation describes a connection's current subscription.
type SubscriptionInformation struct {
	EventNames []string
	Worlds     WorldSelector
}

// CommandError reports a rejected command to the connection that sent it.
type CommandError struct {
	Code    string
	Message string
}

// EchoReply returns an Echo payload.
type EchoReply struct {
	Payload json.RawMessage
}

func (ConnectionStateChanged) Service() string  { return ServicePush }
func (ConnectionStateChanged) Type() string     { return TypeConnectionStateChanged }
func (Heartbeat) Service() string               { return ServiceEvent }
func (Heartbeat) Type() string                  { return TypeHeartbeat }
func (ServiceMessage) Service() string          { return ServiceEvent }
func (ServiceMessage) Type() string             { return TypeServiceMessage }
func (SubscriptionInformation) Service() string { return ServiceEvent }
func (SubscriptionInformation) Type() string    { return TypeSubscription }
func (CommandError) Service() string            { return ServiceEvent }
func (CommandError) Type() string               { return TypeError }
func (EchoReply) Service() string               { return ServiceEvent }
func (EchoReply) Type() string                  { return TypeEcho }

type connectionStateWire struct {
	Service   string   `json:"service" jsonschema:"enum=push"`
	Type      string   `json:"type" jsonschema:"enum=connectionStateChanged"`
	Connected bool     `json:"connected"`
	Endpoint  string   `json:"endpoint,omitempty"`
	Worlds    []string `json:"worlds,omitempty"`
}

type heartbeatWire struct {
	Service   string          `json:"service" jsonschema:"enum=event"`
	Type      string          `json:"type" jsonschema:"enum=heartbeat"`
	Online    map[string]bool `json:"online"`
	Timestamp string          `json:"timestamp"`
}

type serviceMessageWire struct {
	Service string         `json:"service" jsonschema:"enum=event"`
	Type    string         `json:"type" jsonschema:"enum=serviceMessage"`
	Payload map[string]any `json:"payload"`
}

type subscriptionBody struct {
	EventNames []string `json:"eventNames"`
	Worlds     []string `json:"worlds"`
}

type subscriptionWire struct {
	Service      string           `json:"service" jsonschema:"enum=event"`
	Type         string           `json:"type" jsonschema:"enum=subscription"`
	Subscription subscriptionBody `json:"subscription"`
}

type commandErrorWire struct {
	Service string `json:"service" jsonschema:"enum=event"`
	Type    string `json:"type" jsonschema:"enum=error"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

type echoWire struct {
	Service string          `json:"service" jsonschema:"enum=event"`
	Type    string          `json:"type" jsonschema:"enum=echo"`
	Payload json.RawMessage `json:"payload"`
}

func (m ConnectionStateChanged) wireForm() any {
	w := connectionStateWire{
		Service:   m.Service(),
		Type:      m.Type(),
		Connected: m.Connected,
		Endpoint:  m.Endpoint,
	}
	for _, id := range m.Worlds {
		w.Worlds = append(w.Worlds, strconv.FormatUint(uint64(id), 10))
	}
	return w
}

func (m Heartbeat) wireForm() any {
	online := m.Online
	if online == nil {
		online = map[string]bool{}
	}
	return heartbeatWire{
		Service:   m.Service(),
		Type:      m.Type(),
		Online:    online,
		Timestamp: strconv.FormatInt(m.Timestamp, 10),
	}
}

func (m ServiceMessage) wireForm() any {
	return serviceMessageWire{
		Service: m.Service(),
		Type:    m.Type(),
		Payload: event.Payload(m.Event),
	}
}

func (m SubscriptionInformation) wireForm() any {
	names := slices.Clone(m.EventNames)
	if names == nil {
		names = []string{}
	}
	slices.Sort(names)
	return subscriptionWire{
		Service: m.Service(),
		Type:    m.Type(),
		Subscription: subscriptionBody{
			EventNames: names,
			Worlds:     selectorTokens(m.Worlds),
		},
	}
}

func (m CommandError) wireForm() any {
	return commandErrorWire{Service: m.Service(), Type: m.Type(), Code: m.Code, Error: m.Message}
}

func (m EchoReply) wireForm() any {
	payload := m.Payload
	if payload == nil {
		payload = json.RawMessage("null")
	}
	return echoWire{Service: m.Service(), Type: m.Type(), Payload: payload}
}

// Encode renders an outbound message as a JSON object carrying its service
// and type discriminators.
func Encode(msg OutboundMessage) ([]byte, error) {
	if sm, ok := msg.(ServiceMessage); ok && sm.Event == nil {
		return nil, oops.Errorf("service message without event")
	}
	data, err := json.Marshal(msg.wireForm())
	if err != nil {
		return nil, oops.With("service", msg.Service()).
			With("type", msg.Type()).
			Wrapf(err, "encode outbound message")
	}
	return data, nil
}
