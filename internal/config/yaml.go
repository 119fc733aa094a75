// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/eventhub/internal/xdg"
)

// MarshalYAML renders durations in their string form so the output loads
// back through Load.
func (c Config) MarshalYAML() (any, error) {
	origins := c.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	collectors := c.Collectors
	if collectors == nil {
		collectors = []Collector{}
	}
	return map[string]any{
		"listen-addr":        c.ListenAddr,
		"metrics-addr":       c.MetricsAddr,
		"control-addr":       c.ControlAddr,
		"log-format":         c.LogFormat,
		"log-level":          c.LogLevel,
		"heartbeat-interval": c.HeartbeatInterval.String(),
		"outbox-size":        c.OutboxSize,
		"overflow-policy":    c.OverflowPolicy,
		"idle-timeout":       c.IdleTimeout.String(),
		"ping-period":        c.PingPeriod.String(),
		"command-burst":      c.CommandBurst,
		"command-rate":       c.CommandRate,
		"allowed-origins":    origins,
		"metadata-url":       c.MetadataURL,
		"metadata-ttl":       c.MetadataTTL.String(),
		"collectors":         collectors,
	}, nil
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, oops.Wrapf(err, "encode config")
	}
	return out, nil
}

// Write stores the configuration at path, or at the default location when
// path is empty, and returns the path written. Existing files are not
// overwritten.
func (c *Config) Write(path string) (string, error) {
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return "", err
		}
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}

	data, err := c.YAML()
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path is operator supplied
	if err != nil {
		return "", oops.With("path", path).Wrapf(err, "create config file")
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", oops.With("path", path).Wrapf(err, "write config file")
	}
	if err := f.Close(); err != nil {
		return "", oops.With("path", path).Wrapf(err, "close config file")
	}
	return path, nil
}
