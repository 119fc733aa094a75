// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/eventhub/internal/config"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// loadConfig builds a configuration from flag arguments.
func loadConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterConfigFlag(flags)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))

	cfg, err := config.Load(flags)
	require.NoError(t, err)
	return cfg
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "status", "config", "schema"} {
		assert.Contains(t, output, sub, "help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlagIsPersistent(t *testing.T) {
	for _, sub := range []string{"serve", "status", "config"} {
		output, err := execute(t, sub, "--help")
		require.NoError(t, err)
		assert.Contains(t, output, "--config", "%s help missing --config", sub)
	}
}

func TestRootCommand_MissingExplicitConfigFails(t *testing.T) {
	_, err := execute(t, "config", "--config", "/nonexistent/eventhub.yaml")
	assert.Error(t, err)
}
