// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/eventhub/internal/config"
	"github.com/holomush/eventhub/internal/control"
)

const statusTimeout = 2 * time.Second

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running eventhub",
		Long: `Query the health service of a running eventhub and show whether it
is serving and which collector links are online.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hubCfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return runStatus(cmd, hubCfg, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runStatus(cmd *cobra.Command, hubCfg *config.Config, cfg *statusConfig) error {
	if hubCfg.ControlAddr == "" {
		return oops.Code(config.CodeInvalidConfig).Errorf("control-addr is disabled")
	}

	client, err := control.NewClient(hubCfg.ControlAddr)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	endpoints := make([]string, 0, len(hubCfg.Collectors))
	for _, c := range hubCfg.Collectors {
		endpoints = append(endpoints, c.Endpoint)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()
	report := client.Report(ctx, endpoints)

	if cfg.jsonOutput {
		output, err := formatStatusJSON(report)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), formatStatusTable(report))
	return err
}

// formatStatusTable formats the report as a human-readable table.
func formatStatusTable(report []control.ServiceStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SERVICE\tSTATUS\tERROR")
	_, _ = fmt.Fprintln(w, "-------\t------\t-----")
	for _, s := range report {
		reason := "-"
		if s.Error != "" {
			reason = s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Service, s.Status, reason)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the report as JSON.
func formatStatusJSON(report []control.ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", oops.Wrapf(err, "marshal status")
	}
	return string(data), nil
}
