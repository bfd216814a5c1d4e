package narrowphase

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akmonengine/narrowphase/gjk"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "narrowphase.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
workers = 4

[query]
max-iterations = 32
epa-max-iterations = 64
sweep-max-iterations = 20
sweep-refine-iterations = 8
epsilon = 1e-9
epa-epsilon = 1e-7

[log]
development = true
level = "debug"
warn-every = "250ms"
warn-burst = 3
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	q := cfg.Query
	if q.MaxIterations != 32 || q.EPAMaxIterations != 64 || q.SweepMaxIterations != 20 || q.SweepRefineIterations != 8 {
		t.Errorf("iteration limits = %d %d %d %d, want 32 64 20 8",
			q.MaxIterations, q.EPAMaxIterations, q.SweepMaxIterations, q.SweepRefineIterations)
	}
	if q.Epsilon != 1e-9 || q.EPAEpsilon != 1e-7 {
		t.Errorf("tolerances = %g %g, want 1e-9 1e-7", q.Epsilon, q.EPAEpsilon)
	}
	if !cfg.Log.Development || cfg.Log.Level != "debug" {
		t.Errorf("Log = %+v, want development at debug", cfg.Log)
	}
	if cfg.Log.WarnEvery.Duration != 250*time.Millisecond || cfg.Log.WarnBurst != 3 {
		t.Errorf("warn throttling = %v x%d, want 250ms x3", cfg.Log.WarnEvery.Duration, cfg.Log.WarnBurst)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	path := writeConfig(t, `
[query]
max-iterations = 10
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Query.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.Query.MaxIterations)
	}
	if cfg.Workers != defaults.Workers {
		t.Errorf("Workers = %d, want default %d", cfg.Workers, defaults.Workers)
	}
	if cfg.Query.EPAMaxIterations != defaults.Query.EPAMaxIterations {
		t.Errorf("EPAMaxIterations = %d, want default %d", cfg.Query.EPAMaxIterations, defaults.Query.EPAMaxIterations)
	}
	if cfg.Log != defaults.Log {
		t.Errorf("Log = %+v, want default %+v", cfg.Log, defaults.Log)
	}
}

func TestLoadConfigUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
threads = 2

[query]
tolerance = 1e-3
`)

	_, err := LoadConfig(path)
	var unknown errUnknownConfig
	if !errors.As(err, &unknown) {
		t.Fatalf("LoadConfig error = %v, want unknown config keys", err)
	}
	if len(unknown) != 2 {
		t.Errorf("unknown keys = %v, want 2", unknown)
	}
	for _, key := range []string{"threads", "query.tolerance"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %q", err, key)
		}
	}
	if !strings.HasPrefix(err.Error(), "unknown config keys: [") {
		t.Errorf("error = %q", err)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errs    int
	}{
		{"zero workers", "workers = 0", 1},
		{"negative epsilon", "[query]\nepsilon = -1.0", 1},
		{"unknown level", "[log]\nlevel = \"loud\"", 1},
		{"negative warn-every", "[log]\nwarn-every = \"-1s\"", 1},
		{"warn-every without burst", "[log]\nwarn-every = \"1s\"\nwarn-burst = 0", 1},
		{"several", "workers = -1\n[query]\nmax-iterations = 0\n[log]\nlevel = \"loud\"", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if !errors.Is(err, gjk.ErrInvalidArgument) {
				t.Fatalf("LoadConfig error = %v, want ErrInvalidArgument", err)
			}
			if got := len(multierr.Errors(err)); got != tt.errs {
				t.Errorf("got %d errors, want %d: %v", got, tt.errs, err)
			}
		})
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "workers = ")); err == nil {
		t.Error("malformed TOML should fail")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}

	var nilConfig *Config
	shared := nilConfig.OrDefault()
	if shared.Workers != DEFAULT_WORKERS {
		t.Errorf("Workers = %d, want %d", shared.Workers, DEFAULT_WORKERS)
	}
	shared.Workers = 64
	shared.Query.MaxIterations = 1
	if again := nilConfig.OrDefault(); again.Workers != DEFAULT_WORKERS || again.Query.MaxIterations != DefaultConfig().Query.MaxIterations {
		t.Error("changing a default configuration leaked into the next one")
	}
	cfg := DefaultConfig()
	if cfg.OrDefault() != cfg {
		t.Error("OrDefault replaced a non-nil config")
	}
}

func TestLimiter(t *testing.T) {
	off := LogConfig{}
	if off.Limiter() != nil {
		t.Error("zero warn-every should not throttle")
	}

	on := LogConfig{WarnEvery: duration{time.Minute}, WarnBurst: 2}
	limiter := on.Limiter()
	if limiter == nil {
		t.Fatal("warn-every set should throttle")
	}
	if limiter.Burst() != 2 {
		t.Errorf("Burst = %d, want 2", limiter.Burst())
	}
	if !limiter.Allow() || !limiter.Allow() || limiter.Allow() {
		t.Error("limiter should allow exactly the burst")
	}
}

func TestInstrument(t *testing.T) {
	cfg := DefaultConfig()
	logger := zap.NewNop()
	stats := &gjk.Stats{}

	cfg.Instrument(logger, stats)

	if cfg.Query.Logger != logger {
		t.Error("logger not attached")
	}
	if cfg.Query.Stats != stats {
		t.Error("stats not attached")
	}
	if cfg.Query.LogLimiter == nil {
		t.Error("default config should throttle warnings")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		log     LogConfig
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"production default", LogConfig{}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"production warn", LogConfig{Level: "warn"}, zapcore.WarnLevel, zapcore.InfoLevel},
		{"development debug", LogConfig{Development: true, Level: "debug"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"development error", LogConfig{Development: true, Level: "error"}, zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.log)
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			core := logger.Core()
			if !core.Enabled(tt.enabled) {
				t.Errorf("%v should be enabled", tt.enabled)
			}
			if core.Enabled(tt.muted) {
				t.Errorf("%v should be muted", tt.muted)
			}
		})
	}

	if _, err := NewLogger(LogConfig{Level: "loud"}); !errors.Is(err, gjk.ErrInvalidArgument) {
		t.Errorf("NewLogger error = %v, want ErrInvalidArgument", err)
	}
}
