// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/eventhub/internal/config"
)

func newConfigCmd() *cobra.Command {
	var (
		write  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration that serve would use, after applying the
config file and flags, as YAML. With --write, save it to --output or the
default location instead. An existing file is never overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			if write {
				written, err := cfg.Write(output)
				if err != nil {
					return err
				}
				cmd.Printf("Wrote %s\n", written)
				return nil
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "write the configuration file instead of printing it")
	cmd.Flags().StringVar(&output, "output", "", "file written by --write (default: XDG_CONFIG_HOME/eventhub/config.yaml)")
	config.RegisterFlags(cmd.Flags())
	return cmd
}
