package gjk

import (
	"errors"
	"math"
	"sync"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestOrDefault(t *testing.T) {
	var cfg *Config
	got := cfg.OrDefault()
	if got == nil {
		t.Fatal("OrDefault on nil returned nil")
	}
	if got.MaxIterations != DefaultConfig().MaxIterations {
		t.Errorf("MaxIterations = %d, want %d", got.MaxIterations, DefaultConfig().MaxIterations)
	}

	got.Epsilon = 1
	if again := cfg.OrDefault(); again.Epsilon != DefaultConfig().Epsilon {
		t.Error("changing a default configuration leaked into the next one")
	}

	custom := &Config{MaxIterations: 3}
	if custom.OrDefault() != custom {
		t.Error("OrDefault should return a non-nil receiver unchanged")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		errors int
	}{
		{"zero max iterations", func(cfg *Config) { cfg.MaxIterations = 0 }, 1},
		{"negative epa iterations", func(cfg *Config) { cfg.EPAMaxIterations = -1 }, 1},
		{"zero sweep iterations", func(cfg *Config) { cfg.SweepMaxIterations = 0 }, 1},
		{"zero refine iterations", func(cfg *Config) { cfg.SweepRefineIterations = 0 }, 0},
		{"negative refine iterations", func(cfg *Config) { cfg.SweepRefineIterations = -2 }, 1},
		{"epsilon of one", func(cfg *Config) { cfg.Epsilon = 1 }, 1},
		{"NaN epa epsilon", func(cfg *Config) { cfg.EPAEpsilon = math.NaN() }, 1},
		{"everything wrong", func(cfg *Config) { *cfg = Config{SweepRefineIterations: -1} }, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			got := len(multierr.Errors(err))
			if got != tt.errors {
				t.Fatalf("Validate() reported %d errors, want %d: %v", got, tt.errors, err)
			}
			if tt.errors > 0 && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Validate() = %v, want it to wrap ErrInvalidArgument", err)
			}
		})
	}
}

func TestDegraded(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := DefaultConfig()
	cfg.Logger = zap.New(core)
	cfg.LogLimiter = rate.NewLimiter(rate.Every(1e12), 2)

	for i := 0; i < 5; i++ {
		cfg.Degraded("gjk iteration cap reached", zap.Int("iterations", i))
	}

	if got := logs.Len(); got != 2 {
		t.Errorf("logged %d warnings, want 2 within the burst", got)
	}
	if entries := logs.FilterMessage("gjk iteration cap reached").All(); len(entries) > 0 && entries[0].Level != zap.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
}

func TestDegradedWithoutLogger(t *testing.T) {
	cfg := DefaultConfig()
	// No logger and no limiter must not panic
	cfg.Degraded("nothing to see")
}

func TestStats(t *testing.T) {
	stats := &Stats{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.RecordQuery()
			}
			stats.RecordGJKCapped()
			stats.RecordEPACapped()
			stats.RecordEPADegenerate()
			stats.RecordSweepCapped()
		}()
	}
	wg.Wait()

	expected := StatsSnapshot{Queries: 800, GJKCapped: 8, EPACapped: 8, EPADegenerate: 8, SweepCapped: 8}
	if got := stats.Snapshot(); got != expected {
		t.Errorf("Snapshot() = %+v, want %+v", got, expected)
	}
}

func TestNilStats(t *testing.T) {
	var stats *Stats
	stats.RecordQuery()
	stats.RecordGJKCapped()
	stats.RecordEPACapped()
	stats.RecordEPADegenerate()
	stats.RecordSweepCapped()

	if got := stats.Snapshot(); got != (StatsSnapshot{}) {
		t.Errorf("nil Snapshot() = %+v, want zero", got)
	}
}
