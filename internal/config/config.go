// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads eventhub configuration from flag defaults, an optional
// YAML file and explicitly set flags, in increasing precedence.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/eventhub/internal/xdg"
)

// CodeInvalidConfig marks configuration that failed to load or validate.
const CodeInvalidConfig = "INVALID_CONFIG"

// FlagConfig is the flag naming the configuration file.
const FlagConfig = "config"

// Default values.
const (
	DefaultListenAddr        = ":8080"
	DefaultMetricsAddr       = "127.0.0.1:9100"
	DefaultControlAddr       = "127.0.0.1:9001"
	DefaultLogFormat         = "json"
	DefaultLogLevel          = "info"
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultOutboxSize        = 256
	DefaultOverflowPolicy    = "drop-oldest"
	DefaultIdleTimeout       = 90 * time.Second
	DefaultPingPeriod        = 30 * time.Second
	DefaultCommandBurst      = 10
	DefaultCommandRate       = 2.0
	DefaultMetadataTTL       = time.Minute
)

// Collector configures one upstream event source.
type Collector struct {
	Endpoint string   `koanf:"endpoint" yaml:"endpoint" validate:"required"`
	URL      string   `koanf:"url" yaml:"url" validate:"required,url"`
	Worlds   []uint32 `koanf:"worlds" yaml:"worlds,omitempty"`
}

// Config is the effective eventhub configuration.
type Config struct {
	ListenAddr        string        `koanf:"listen-addr" yaml:"listen-addr" validate:"required"`
	MetricsAddr       string        `koanf:"metrics-addr" yaml:"metrics-addr"`
	ControlAddr       string        `koanf:"control-addr" yaml:"control-addr"`
	LogFormat         string        `koanf:"log-format" yaml:"log-format" validate:"oneof=json text"`
	LogLevel          string        `koanf:"log-level" yaml:"log-level" validate:"oneof=debug info warn error"`
	HeartbeatInterval time.Duration `koanf:"heartbeat-interval" yaml:"heartbeat-interval" validate:"gt=0"`
	OutboxSize        int           `koanf:"outbox-size" yaml:"outbox-size" validate:"gt=0"`
	OverflowPolicy    string        `koanf:"overflow-policy" yaml:"overflow-policy" validate:"oneof=drop-oldest drop-newest"`
	IdleTimeout       time.Duration `koanf:"idle-timeout" yaml:"idle-timeout" validate:"gt=0"`
	PingPeriod        time.Duration `koanf:"ping-period" yaml:"ping-period" validate:"gt=0,ltfield=IdleTimeout"`
	CommandBurst      int           `koanf:"command-burst" yaml:"command-burst" validate:"gt=0"`
	CommandRate       float64       `koanf:"command-rate" yaml:"command-rate" validate:"gt=0"`
	AllowedOrigins    []string      `koanf:"allowed-origins" yaml:"allowed-origins"`
	MetadataURL       string        `koanf:"metadata-url" yaml:"metadata-url" validate:"omitempty,url"`
	MetadataTTL       time.Duration `koanf:"metadata-ttl" yaml:"metadata-ttl" validate:"gt=0"`
	Collectors        []Collector   `koanf:"collectors" yaml:"collectors" validate:"dive"`
}

// RegisterConfigFlag defines the --config flag.
func RegisterConfigFlag(flags *pflag.FlagSet) {
	flags.String(FlagConfig, "", "configuration file (default: XDG_CONFIG_HOME/eventhub/config.yaml if present)")
}

// RegisterFlags defines one flag per scalar setting, carrying its default.
// Collectors can only be configured in the file.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("listen-addr", DefaultListenAddr, "client websocket listen address")
	flags.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("control-addr", DefaultControlAddr, "gRPC health listen address (empty = disabled)")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.Duration("heartbeat-interval", DefaultHeartbeatInterval, "interval between heartbeats")
	flags.Int("outbox-size", DefaultOutboxSize, "per-connection outbound buffer size")
	flags.String("overflow-policy", DefaultOverflowPolicy, "outbound buffer overflow policy (drop-oldest or drop-newest)")
	flags.Duration("idle-timeout", DefaultIdleTimeout, "close connections silent for this long")
	flags.Duration("ping-period", DefaultPingPeriod, "interval between websocket pings")
	flags.Int("command-burst", DefaultCommandBurst, "commands a connection may send in a burst")
	flags.Float64("command-rate", DefaultCommandRate, "sustained commands per second per connection")
	flags.StringSlice("allowed-origins", nil, "allowed browser origin globs (empty = any)")
	flags.String("metadata-url", "", "URL of the client version metadata (empty = /version disabled)")
	flags.Duration("metadata-ttl", DefaultMetadataTTL, "how long version metadata is cached")
}

// Load builds the configuration from flags. The file named by --config must
// exist; the default file is read only if present.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path := configPath(flags); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeInvalidConfig).With("path", path).Wrapf(err, "load config file")
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "load flags")
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configPath returns the file named by --config, else the default file if it
// exists, else "".
func configPath(flags *pflag.FlagSet) string {
	if f := flags.Lookup(FlagConfig); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
			}
			return oops.Code(CodeInvalidConfig).
				With("fields", msgs).
				Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return oops.Code(CodeInvalidConfig).Wrapf(err, "invalid configuration")
	}

	seen := make(map[string]struct{}, len(c.Collectors))
	for _, col := range c.Collectors {
		if _, dup := seen[col.Endpoint]; dup {
			return oops.Code(CodeInvalidConfig).
				With("endpoint", col.Endpoint).
				Errorf("duplicate collector endpoint %q", col.Endpoint)
		}
		seen[col.Endpoint] = struct{}{}

		if !strings.HasPrefix(col.URL, "ws://") && !strings.HasPrefix(col.URL, "wss://") {
			return oops.Code(CodeInvalidConfig).
				With("endpoint", col.Endpoint).
				Errorf("collector url must use ws or wss, got %q", col.URL)
		}
	}
	return nil
}
