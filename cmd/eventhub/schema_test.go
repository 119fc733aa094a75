// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCmd_WritesSchemas(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	output, err := execute(t, "schema", "--dir", dir)
	require.NoError(t, err)

	assert.Contains(t, output, filepath.Join(dir, "command.schema.json"))
	assert.FileExists(t, filepath.Join(dir, "heartbeat.schema.json"))
}
