// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/eventhub/internal/config"
)

// NewRootCmd creates the root command for the eventhub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventhub",
		Short: "eventhub - realtime game event subscription hub",
		Long: `eventhub relays game server events from upstream collectors to
websocket clients, each receiving only the event names and worlds it
subscribed to.`,
		SilenceUsage: true,
	}

	config.RegisterConfigFlag(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newSchemaCmd())

	return cmd
}
