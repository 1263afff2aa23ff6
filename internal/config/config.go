// Package config manages the netline daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and the defaults baked into
// DefaultConfig.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete netline daemon configuration.
type Config struct {
	Control ControlConfig  `koanf:"control"`
	Metrics MetricsConfig  `koanf:"metrics"`
	Log     LogConfig      `koanf:"log"`
	Line    LineConfig     `koanf:"line"`
	Listens []ListenConfig `koanf:"listens"`
}

// ControlConfig holds the admin HTTP API configuration.
type ControlConfig struct {
	// Addr is the admin API listen address (e.g., ":8090").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// LineConfig holds daemon-wide Line parameters. The daemon's listeners use
// only ReadinessPollInterval; ConnectTimeout, ReceiveBuffer and SendBuffer
// are loaded (and ConnectTimeout validated) but are not applied to any
// Line. ListenConfig entries carry no per-listener overrides of them.
type LineConfig struct {
	// ConnectTimeout is the configured connect timeout; the default of
	// 100ms matches line.New's own default.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	// ReceiveBuffer and SendBuffer are SO_RCVBUF/SO_SNDBUF sizes in bytes.
	// The line package's SetReceiveBuffer/SetSendBuffer clamp sizes to
	// [512, 1048576].
	ReceiveBuffer int `koanf:"receive_buffer"`
	SendBuffer    int `koanf:"send_buffer"`

	// ReadinessPollInterval bounds how long a server loop's Readable call
	// blocks waiting for the next batch of ready handles.
	ReadinessPollInterval time.Duration `koanf:"readiness_poll_interval"`
}

// ListenConfig describes one declarative listener from the configuration
// file. Each entry starts one Line-backed server on daemon startup.
type ListenConfig struct {
	// Name identifies the listener in logs and metrics labels.
	Name string `koanf:"name"`

	// Addr is "host:port"; host is usually empty (all interfaces).
	Addr string `koanf:"addr"`

	// Kind is "tcp" or "udp".
	Kind string `koanf:"kind"`

	// Family is "ipv4" or "ipv6".
	Family string `koanf:"family"`

	// Broadcast enables SO_BROADCAST for a UDP listener.
	Broadcast bool `koanf:"broadcast"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Control: ControlConfig{
			Addr: ":8090",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Line: LineConfig{
			ConnectTimeout:        100 * time.Millisecond,
			ReceiveBuffer:         65536,
			SendBuffer:            65536,
			ReadinessPollInterval: 200 * time.Millisecond,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for netline configuration.
// Variables are named NETLINE_<section>_<key>, e.g., NETLINE_CONTROL_ADDR.
const envPrefix = "NETLINE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NETLINE_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	NETLINE_CONTROL_ADDR  -> control.addr
//	NETLINE_METRICS_ADDR  -> metrics.addr
//	NETLINE_METRICS_PATH  -> metrics.path
//	NETLINE_LOG_LEVEL     -> log.level
//	NETLINE_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and a YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NETLINE_CONTROL_ADDR -> control.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"control.addr":                 defaults.Control.Addr,
		"metrics.addr":                 defaults.Metrics.Addr,
		"metrics.path":                 defaults.Metrics.Path,
		"log.level":                    defaults.Log.Level,
		"log.format":                   defaults.Log.Format,
		"line.connect_timeout":         defaults.Line.ConnectTimeout.String(),
		"line.receive_buffer":          defaults.Line.ReceiveBuffer,
		"line.send_buffer":             defaults.Line.SendBuffer,
		"line.readiness_poll_interval": defaults.Line.ReadinessPollInterval.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyControlAddr indicates the admin API listen address is empty.
	ErrEmptyControlAddr = errors.New("control.addr must not be empty")

	// ErrInvalidConnectTimeout indicates the default connect timeout is
	// non-positive.
	ErrInvalidConnectTimeout = errors.New("line.connect_timeout must be > 0")

	// ErrInvalidListenAddr indicates a listener has an empty addr.
	ErrInvalidListenAddr = errors.New("listen addr must not be empty")

	// ErrInvalidListenKind indicates a listener has an unrecognized kind.
	ErrInvalidListenKind = errors.New("listen kind must be tcp or udp")

	// ErrInvalidListenFamily indicates a listener has an unrecognized family.
	ErrInvalidListenFamily = errors.New("listen family must be ipv4 or ipv6")

	// ErrDuplicateListenName indicates two listeners share the same name.
	ErrDuplicateListenName = errors.New("duplicate listen name")
)

// ValidListenKinds lists the recognized listener kind strings.
var ValidListenKinds = map[string]bool{"tcp": true, "udp": true}

// ValidListenFamilies lists the recognized listener family strings.
var ValidListenFamilies = map[string]bool{"ipv4": true, "ipv6": true}

// Validate checks the configuration for logical errors. Returns the first
// validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Control.Addr == "" {
		return ErrEmptyControlAddr
	}

	if cfg.Line.ConnectTimeout <= 0 {
		return ErrInvalidConnectTimeout
	}

	return validateListens(cfg.Listens)
}

func validateListens(listens []ListenConfig) error {
	seen := make(map[string]struct{}, len(listens))

	for i, lc := range listens {
		if lc.Addr == "" {
			return fmt.Errorf("listens[%d]: %w", i, ErrInvalidListenAddr)
		}
		if lc.Kind != "" && !ValidListenKinds[lc.Kind] {
			return fmt.Errorf("listens[%d] kind %q: %w", i, lc.Kind, ErrInvalidListenKind)
		}
		if lc.Family != "" && !ValidListenFamilies[lc.Family] {
			return fmt.Errorf("listens[%d] family %q: %w", i, lc.Family, ErrInvalidListenFamily)
		}
		name := lc.Name
		if name == "" {
			name = lc.Addr
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("listens[%d] name %q: %w", i, name, ErrDuplicateListenName)
		}
		seen[name] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
