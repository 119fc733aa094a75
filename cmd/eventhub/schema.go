// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/eventhub/internal/wire"
)

func newSchemaCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Write the wire protocol JSON Schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := wire.WriteSchemas(dir)
			if err != nil {
				return err
			}
			for _, path := range paths {
				cmd.Printf("Generated %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "schemas", "output directory")
	return cmd
}
