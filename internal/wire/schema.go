// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseID = "https://holomush.dev/schemas/eventhub/"

// commandDocument describes inbound commands for schema generation.
type commandDocument struct {
	Service    string   `json:"service" jsonschema:"enum=event"`
	Action     string   `json:"action" jsonschema:"enum=subscribe,enum=clearSubscribe,enum=echo"`
	EventNames []string `json:"eventNames,omitempty"`
	Worlds     []string `json:"worlds,omitempty"`
	All        bool     `json:"all,omitempty"`
	Payload    any      `json:"payload,omitempty"`
}

// schemaDocs maps schema names to the documents reflected for them.
var schemaDocs = []struct {
	name  string
	title string
	doc   any
}{
	{"command", "Inbound command", &commandDocument{}},
	{TypeConnectionStateChanged, "Connection state changed", &connectionStateWire{}},
	{TypeHeartbeat, "Heartbeat", &heartbeatWire{}},
	{TypeServiceMessage, "Service message", &serviceMessageWire{}},
	{TypeSubscription, "Subscription information", &subscriptionWire{}},
	{TypeError, "Command error", &commandErrorWire{}},
	{TypeEcho, "Echo reply", &echoWire{}},
}

// GenerateSchemas returns the JSON Schema of the inbound command and of
// every outbound message, keyed by name.
func GenerateSchemas() (map[string][]byte, error) {
	out := make(map[string][]byte, len(schemaDocs))
	for _, d := range schemaDocs {
		data, err := json.MarshalIndent(reflectSchema(d.name, d.title, d.doc), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s schema: %w", d.name, err)
		}
		out[d.name] = data
	}
	return out, nil
}

// WriteSchemas writes each schema to dir as <name>.schema.json and returns
// the written paths in generation order.
func WriteSchemas(dir string) ([]string, error) {
	schemas, err := GenerateSchemas()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create schema directory: %w", err)
	}

	paths := make([]string, 0, len(schemaDocs))
	for _, d := range schemaDocs {
		path := filepath.Join(dir, d.name+".schema.json")
		if err := os.WriteFile(path, append(schemas[d.name], '\n'), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func reflectSchema(name, title string, doc any) *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(doc)
	schema.ID = jsonschema.ID(schemaBaseID + name + ".schema.json")
	schema.Title = "Event hub " + title

	if _, ok := doc.(*commandDocument); ok {
		nullableArray(schema, "eventNames", &jsonschema.Schema{Type: "string"})
		nullableArray(schema, "worlds", &jsonschema.Schema{
			AnyOf: []*jsonschema.Schema{{Type: "string"}, {Type: "integer"}},
		})
	}
	return schema
}

// nullableArray lets an optional array property also be null; null means
// "not supplied" on the wire.
func nullableArray(schema *jsonschema.Schema, property string, items *jsonschema.Schema) {
	prop, ok := schema.Properties.Get(property)
	if !ok {
		return
	}
	prop.Type = ""
	prop.Items = nil
	prop.AnyOf = []*jsonschema.Schema{
		{Type: "array", Items: items},
		{Type: "null"},
	}
}

var commandSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	data, err := json.Marshal(reflectSchema("command", "Inbound command", &commandDocument{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command schema: %w", err)
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse command schema: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("command.schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile("command.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
})

// validateCommand checks the shape of an inbound frame against the command
// schema.
func validateCommand(data []byte) error {
	sch, err := commandSchema()
	if err != nil {
		return malformed("command schema unavailable", err)
	}

	instance, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return malformed("command must be valid JSON", err)
	}
	if _, ok := instance.(map[string]any); !ok {
		return ErrMalformedCommand("command must be a JSON object")
	}
	if err := sch.Validate(instance); err != nil {
		return malformed(`command must have service "event" and action subscribe, clearSubscribe or echo`, err)
	}
	return nil
}
