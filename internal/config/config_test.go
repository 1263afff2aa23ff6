package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lineproto/netline/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Control.Addr != ":8090" {
		t.Errorf("Control.Addr = %q, want %q", cfg.Control.Addr, ":8090")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Line.ConnectTimeout != 100*time.Millisecond {
		t.Errorf("Line.ConnectTimeout = %v, want %v", cfg.Line.ConnectTimeout, 100*time.Millisecond)
	}

	if cfg.Line.ReceiveBuffer != 65536 {
		t.Errorf("Line.ReceiveBuffer = %d, want %d", cfg.Line.ReceiveBuffer, 65536)
	}

	if cfg.Line.SendBuffer != 65536 {
		t.Errorf("Line.SendBuffer = %d, want %d", cfg.Line.SendBuffer, 65536)
	}

	if cfg.Line.ReadinessPollInterval != 200*time.Millisecond {
		t.Errorf("Line.ReadinessPollInterval = %v, want %v", cfg.Line.ReadinessPollInterval, 200*time.Millisecond)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
control:
  addr: ":60000"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
line:
  connect_timeout: "500ms"
  receive_buffer: 32768
  send_buffer: 16384
  readiness_poll_interval: "50ms"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Control.Addr != ":60000" {
		t.Errorf("Control.Addr = %q, want %q", cfg.Control.Addr, ":60000")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Line.ConnectTimeout != 500*time.Millisecond {
		t.Errorf("Line.ConnectTimeout = %v, want %v", cfg.Line.ConnectTimeout, 500*time.Millisecond)
	}

	if cfg.Line.ReceiveBuffer != 32768 {
		t.Errorf("Line.ReceiveBuffer = %d, want %d", cfg.Line.ReceiveBuffer, 32768)
	}

	if cfg.Line.SendBuffer != 16384 {
		t.Errorf("Line.SendBuffer = %d, want %d", cfg.Line.SendBuffer, 16384)
	}

	if cfg.Line.ReadinessPollInterval != 50*time.Millisecond {
		t.Errorf("Line.ReadinessPollInterval = %v, want %v", cfg.Line.ReadinessPollInterval, 50*time.Millisecond)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override control.addr and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
control:
  addr: ":55555"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Control.Addr != ":55555" {
		t.Errorf("Control.Addr = %q, want %q", cfg.Control.Addr, ":55555")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Line.ConnectTimeout != 100*time.Millisecond {
		t.Errorf("Line.ConnectTimeout = %v, want default %v", cfg.Line.ConnectTimeout, 100*time.Millisecond)
	}

	if cfg.Line.ReceiveBuffer != 65536 {
		t.Errorf("Line.ReceiveBuffer = %d, want default %d", cfg.Line.ReceiveBuffer, 65536)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty control addr",
			modify: func(cfg *config.Config) {
				cfg.Control.Addr = ""
			},
			wantErr: config.ErrEmptyControlAddr,
		},
		{
			name: "zero connect timeout",
			modify: func(cfg *config.Config) {
				cfg.Line.ConnectTimeout = 0
			},
			wantErr: config.ErrInvalidConnectTimeout,
		},
		{
			name: "negative connect timeout",
			modify: func(cfg *config.Config) {
				cfg.Line.ConnectTimeout = -1 * time.Second
			},
			wantErr: config.ErrInvalidConnectTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Listen Config Tests
// -------------------------------------------------------------------------

func TestLoadWithListens(t *testing.T) {
	t.Parallel()

	yamlContent := `
control:
  addr: ":8090"
listens:
  - name: "primary"
    addr: ":5000"
    kind: tcp
    family: ipv4
  - name: "discovery"
    addr: ":5001"
    kind: udp
    family: ipv4
    broadcast: true
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.Listens) != 2 {
		t.Fatalf("Listens count = %d, want 2", len(cfg.Listens))
	}

	l1 := cfg.Listens[0]
	if l1.Name != "primary" {
		t.Errorf("Listens[0].Name = %q, want %q", l1.Name, "primary")
	}
	if l1.Addr != ":5000" {
		t.Errorf("Listens[0].Addr = %q, want %q", l1.Addr, ":5000")
	}
	if l1.Kind != "tcp" {
		t.Errorf("Listens[0].Kind = %q, want %q", l1.Kind, "tcp")
	}
	if l1.Broadcast {
		t.Error("Listens[0].Broadcast = true, want false")
	}

	l2 := cfg.Listens[1]
	if l2.Name != "discovery" {
		t.Errorf("Listens[1].Name = %q, want %q", l2.Name, "discovery")
	}
	if l2.Kind != "udp" {
		t.Errorf("Listens[1].Kind = %q, want %q", l2.Kind, "udp")
	}
	if !l2.Broadcast {
		t.Error("Listens[1].Broadcast = false, want true")
	}
}

func TestValidateListenErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty listen addr",
			modify: func(cfg *config.Config) {
				cfg.Listens = []config.ListenConfig{{Name: "a", Addr: ""}}
			},
			wantErr: config.ErrInvalidListenAddr,
		},
		{
			name: "invalid listen kind",
			modify: func(cfg *config.Config) {
				cfg.Listens = []config.ListenConfig{{Name: "a", Addr: ":5000", Kind: "sctp"}}
			},
			wantErr: config.ErrInvalidListenKind,
		},
		{
			name: "invalid listen family",
			modify: func(cfg *config.Config) {
				cfg.Listens = []config.ListenConfig{{Name: "a", Addr: ":5000", Family: "ipv5"}}
			},
			wantErr: config.ErrInvalidListenFamily,
		},
		{
			name: "duplicate listen names",
			modify: func(cfg *config.Config) {
				cfg.Listens = []config.ListenConfig{
					{Name: "a", Addr: ":5000"},
					{Name: "a", Addr: ":5001"},
				}
			},
			wantErr: config.ErrDuplicateListenName,
		},
		{
			name: "duplicate listen addr used as name when name empty",
			modify: func(cfg *config.Config) {
				cfg.Listens = []config.ListenConfig{
					{Addr: ":5000"},
					{Addr: ":5000"},
				}
			},
			wantErr: config.ErrDuplicateListenName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateListenValidKindsAndFamilies(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"tcp", "udp", ""} {
		for _, family := range []string{"ipv4", "ipv6", ""} {
			cfg := config.DefaultConfig()
			cfg.Listens = []config.ListenConfig{
				{Name: "x", Addr: ":5000", Kind: kind, Family: family},
			}

			if err := config.Validate(cfg); err != nil {
				t.Errorf("Validate() with kind %q family %q returned error: %v", kind, family, err)
			}
		}
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
control:
  addr: ":8090"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NETLINE_CONTROL_ADDR", ":60000")
	t.Setenv("NETLINE_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Control.Addr != ":60000" {
		t.Errorf("Control.Addr = %q, want %q (from env)", cfg.Control.Addr, ":60000")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
control:
  addr: ":8090"
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NETLINE_METRICS_ADDR", ":9200")
	t.Setenv("NETLINE_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "netline.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
