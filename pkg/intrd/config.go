package intrd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon's tunables.
//
// The sleep intervals, idle load, time range and stats length follow the
// historical intrd constants; the imbalance thresholds are conservative
// choices exposed so operators can tune them.
type Config struct {
	NormalSleep    time.Duration `toml:"normal_sleep"`     // between samples
	IdleSleep      time.Duration `toml:"idle_sleep"`       // while interrupt load is idle
	SingleCPUSleep time.Duration `toml:"single_cpu_sleep"` // while fewer than two cpus are online

	IdleIntrLoad     float64       `toml:"idle_intr_load"`      // average load under which we are idle
	TimeRangeTooHigh float64       `toml:"time_range_too_high"` // snaptime spread, fraction of the interval
	StatsLen         time.Duration `toml:"stats_len"`           // delta window horizon
	MaxDeltaSpan     time.Duration `toml:"max_delta_span"`      // wider deltas reset the window; 0 = stats_len

	ImbalanceTolerance float64 `toml:"imbalance_tolerance"` // relative drop below baseline
	GoodnessFloor      float64 `toml:"goodness_floor"`
	MinLoadGap         float64 `toml:"min_load_gap"` // hottest minus coldest cpu load
	MaxMoves           int     `toml:"max_moves"`    // per planning cycle
	BusyEpsilonNs      float64 `toml:"busy_epsilon_ns"`

	MetricsAddr     string        `toml:"metrics_addr"`
	NominalIntrCost time.Duration `toml:"nominal_intr_cost"`
}

// DefaultConfig returns a Config pre-filled with the default tunables.
func DefaultConfig() *Config {
	return &Config{
		NormalSleep:        10 * time.Second,
		IdleSleep:          45 * time.Second,
		SingleCPUSleep:     15 * time.Minute,
		IdleIntrLoad:       0.1,
		TimeRangeTooHigh:   0.01,
		StatsLen:           60 * time.Second,
		MaxDeltaSpan:       60 * time.Second,
		ImbalanceTolerance: 0.1,
		GoodnessFloor:      0.2,
		MinLoadGap:         0.05,
		MaxMoves:           8,
		BusyEpsilonNs:      1000,
		NominalIntrCost:    2 * time.Microsecond,
	}
}

// LoadConfig reads configuration from an optional TOML file, then INTRD_*
// environment variables, over the defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	durations := map[string]*time.Duration{
		"INTRD_NORMAL_SLEEP":      &c.NormalSleep,
		"INTRD_IDLE_SLEEP":        &c.IdleSleep,
		"INTRD_SINGLE_CPU_SLEEP":  &c.SingleCPUSleep,
		"INTRD_STATS_LEN":         &c.StatsLen,
		"INTRD_MAX_DELTA_SPAN":    &c.MaxDeltaSpan,
		"INTRD_NOMINAL_INTR_COST": &c.NominalIntrCost,
	}
	floats := map[string]*float64{
		"INTRD_IDLE_INTR_LOAD":      &c.IdleIntrLoad,
		"INTRD_TIME_RANGE_TOO_HIGH": &c.TimeRangeTooHigh,
		"INTRD_IMBALANCE_TOLERANCE": &c.ImbalanceTolerance,
		"INTRD_GOODNESS_FLOOR":      &c.GoodnessFloor,
		"INTRD_MIN_LOAD_GAP":        &c.MinLoadGap,
		"INTRD_BUSY_EPSILON_NS":     &c.BusyEpsilonNs,
	}

	for name, dst := range durations {
		if v := getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	for name, dst := range floats {
		if v := getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = f
		}
	}
	if v := getenv("INTRD_MAX_MOVES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INTRD_MAX_MOVES: %w", err)
		}
		c.MaxMoves = n
	}
	if v := getenv("INTRD_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	return nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"normal_sleep", c.NormalSleep},
		{"idle_sleep", c.IdleSleep},
		{"single_cpu_sleep", c.SingleCPUSleep},
		{"stats_len", c.StatsLen},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%w: %s must be > 0", ErrInvalidConfig, p.name)
		}
	}
	if c.MaxDeltaSpan < 0 {
		return fmt.Errorf("%w: max_delta_span must be >= 0", ErrInvalidConfig)
	}

	fractions := []struct {
		name string
		v    float64
	}{
		{"idle_intr_load", c.IdleIntrLoad},
		{"imbalance_tolerance", c.ImbalanceTolerance},
		{"goodness_floor", c.GoodnessFloor},
		{"min_load_gap", c.MinLoadGap},
	}
	for _, f := range fractions {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1]", ErrInvalidConfig, f.name)
		}
	}
	if c.TimeRangeTooHigh <= 0 {
		return fmt.Errorf("%w: time_range_too_high must be > 0", ErrInvalidConfig)
	}
	if c.MaxMoves < 1 {
		return fmt.Errorf("%w: max_moves must be >= 1", ErrInvalidConfig)
	}
	if c.BusyEpsilonNs < 0 {
		return fmt.Errorf("%w: busy_epsilon_ns must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// DeltaSpanLimit is the widest delta admitted into the window.
func (c *Config) DeltaSpanLimit() time.Duration {
	if c.MaxDeltaSpan > 0 {
		return c.MaxDeltaSpan
	}
	return c.StatsLen
}
