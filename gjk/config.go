package gjk

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds every tunable of the narrow-phase queries. A nil *Config
// passed to a query means DefaultConfig().
type Config struct {
	// MaxIterations caps the GJK loop.
	MaxIterations int `toml:"max-iterations"`
	// EPAMaxIterations caps polytope expansion.
	EPAMaxIterations int `toml:"epa-max-iterations"`
	// SweepMaxIterations caps conservative advancement steps.
	SweepMaxIterations int `toml:"sweep-max-iterations"`
	// SweepRefineIterations bounds the bisection run after an overshooting step.
	SweepRefineIterations int `toml:"sweep-refine-iterations"`
	// Epsilon is the relative GJK tolerance, scaled by the size of the shapes.
	Epsilon float64 `toml:"epsilon"`
	// EPAEpsilon is the relative tolerance on the gain of an expansion step.
	EPAEpsilon float64 `toml:"epa-epsilon"`

	// Logger receives degraded-result warnings. Nil disables logging.
	Logger *zap.Logger `toml:"-"`
	// LogLimiter throttles degraded-result warnings. Nil logs every one.
	LogLimiter *rate.Limiter `toml:"-"`
	// Stats collects counters shared by every query using this config.
	Stats *Stats `toml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxIterations:         32,
		EPAMaxIterations:      32,
		SweepMaxIterations:    64,
		SweepRefineIterations: 8,
		Epsilon:               1e-6,
		EPAEpsilon:            1e-6,
	}
}

// OrDefault returns c, or a fresh default configuration when c is nil.
func (c *Config) OrDefault() *Config {
	if c == nil {
		return DefaultConfig()
	}
	return c
}

// Validate reports every out-of-range field at once.
func (c *Config) Validate() error {
	var err error
	positive := []struct {
		name  string
		value int
	}{
		{"max-iterations", c.MaxIterations},
		{"epa-max-iterations", c.EPAMaxIterations},
		{"sweep-max-iterations", c.SweepMaxIterations},
	}
	for _, p := range positive {
		if p.value <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidArgument, p.name, p.value))
		}
	}
	if c.SweepRefineIterations < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: sweep-refine-iterations must not be negative, got %d", ErrInvalidArgument, c.SweepRefineIterations))
	}

	tolerances := []struct {
		name  string
		value float64
	}{
		{"epsilon", c.Epsilon},
		{"epa-epsilon", c.EPAEpsilon},
	}
	for _, tol := range tolerances {
		if !(tol.value > 0 && tol.value < 1) || math.IsNaN(tol.value) {
			err = multierr.Append(err, fmt.Errorf("%w: %s must be in (0, 1), got %g", ErrInvalidArgument, tol.name, tol.value))
		}
	}

	return err
}

// Degraded logs a warning about a best-effort result, subject to LogLimiter.
func (c *Config) Degraded(msg string, fields ...zap.Field) {
	if c.Logger == nil {
		return
	}
	if c.LogLimiter != nil && !c.LogLimiter.Allow() {
		return
	}
	c.Logger.Warn(msg, fields...)
}
