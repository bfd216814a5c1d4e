package narrowphase

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/akmonengine/narrowphase/gjk"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DEFAULT_WORKERS = 1

// Config is the batch configuration, loadable from TOML.
type Config struct {
	// Workers is the number of goroutines per pipeline stage.
	Workers int        `toml:"workers"`
	Query   gjk.Config `toml:"query"`
	Log     LogConfig  `toml:"log"`
}

// LogConfig selects the logger built by NewLogger and the throttling of
// degraded-result warnings.
type LogConfig struct {
	Development bool   `toml:"development"`
	Level       string `toml:"level"`
	// WarnEvery and WarnBurst bound the rate of degraded-result warnings.
	// A zero WarnEvery logs every one.
	WarnEvery duration `toml:"warn-every"`
	WarnBurst int      `toml:"warn-burst"`
}

func DefaultConfig() *Config {
	return &Config{
		Workers: DEFAULT_WORKERS,
		Query:   *gjk.DefaultConfig(),
		Log: LogConfig{
			Level:     "info",
			WarnEvery: duration{time.Second},
			WarnBurst: 5,
		},
	}
}

// OrDefault returns c, or a fresh default configuration when c is nil.
func (c *Config) OrDefault() *Config {
	if c == nil {
		return DefaultConfig()
	}
	return c
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var err error
	if c.Workers <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: workers must be positive, got %d", gjk.ErrInvalidArgument, c.Workers))
	}
	err = multierr.Append(err, c.Query.Validate())
	err = multierr.Append(err, c.Log.Validate())
	return err
}

func (l *LogConfig) Validate() error {
	var err error
	if _, parseErr := zap.ParseAtomicLevel(l.level()); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: log level: %v", gjk.ErrInvalidArgument, parseErr))
	}
	if l.WarnEvery.Duration < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: warn-every must not be negative, got %v", gjk.ErrInvalidArgument, l.WarnEvery.Duration))
	}
	if l.WarnEvery.Duration > 0 && l.WarnBurst <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: warn-burst must be positive when warn-every is set, got %d", gjk.ErrInvalidArgument, l.WarnBurst))
	}
	return err
}

func (l *LogConfig) level() string {
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

// Limiter builds the rate limiter of degraded-result warnings, nil when
// every warning is logged.
func (l *LogConfig) Limiter() *rate.Limiter {
	if l.WarnEvery.Duration <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(l.WarnEvery.Duration), l.WarnBurst)
}

// Instrument attaches the runtime collaborators of the queries: the logger
// receiving degraded-result warnings, their limiter, and the shared counters.
func (c *Config) Instrument(logger *zap.Logger, stats *gjk.Stats) {
	c.Query.Logger = logger
	c.Query.LogLimiter = c.Log.Limiter()
	c.Query.Stats = stats
}

// LoadConfig reads a TOML configuration over the defaults. Unknown keys are
// rejected.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		var err errUnknownConfig
		for _, key := range undecoded {
			err = append(err, key.String())
		}
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

type errUnknownConfig []string

func (e errUnknownConfig) Error() string {
	return "unknown config keys: [" + strings.Join(e, ", ") + "]"
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// NewLogger builds a production logger, or a development one, at the
// configured level.
func NewLogger(l LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.level())
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %v", gjk.ErrInvalidArgument, err)
	}

	zapConfig := zap.NewProductionConfig()
	if l.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	return zapConfig.Build()
}
