// Package config loads simulator settings from defaults, an optional config
// file and GRAVSIM_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/internal/observability"
	"github.com/signalsfoundry/gravity-simulator/timectrl"
)

// EnvPrefix prefixes every environment override, e.g. GRAVSIM_PHYSICS_BATCHED.
const EnvPrefix = "GRAVSIM"

// DefaultMaxOrbitPoints caps each orbit trail so snapshot copies stay
// bounded on long runs.
const DefaultMaxOrbitPoints = 500

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full simulator configuration, one field per top-level key.
type Config struct {
	Physics  PhysicsConfig  `mapstructure:"physics"`
	Clock    ClockConfig    `mapstructure:"clock"`
	Render   RenderConfig   `mapstructure:"render"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// PhysicsConfig holds the constants and update rules of the engine.
type PhysicsConfig struct {
	G              float64 `mapstructure:"g"`
	Timestep       float64 `mapstructure:"timestep"` // seconds of simulated time per tick
	MaxOrbitPoints int     `mapstructure:"max_orbit_points"`
	Batched        bool    `mapstructure:"batched"`
	SatelliteMode  string  `mapstructure:"satellite_mode"` // anchored | inertial
}

// ClockConfig paces the headless and terminal runs.
type ClockConfig struct {
	Mode     string        `mapstructure:"mode"` // realtime | accelerated
	Interval time.Duration `mapstructure:"interval"`
	MaxTicks int           `mapstructure:"max_ticks"` // 0 runs until interrupted
}

// RenderConfig sizes the window viewer.
type RenderConfig struct {
	Width  int     `mapstructure:"width"`
	Height int     `mapstructure:"height"`
	Scale  float64 `mapstructure:"scale"` // pixels per metre; 0 selects 250 px per AU
	TPS    int     `mapstructure:"tps"`
}

// ScenarioConfig picks the bodies to simulate.
type ScenarioConfig struct {
	Path string `mapstructure:"path"` // JSON scenario file; overrides Name
	Name string `mapstructure:"name"` // default | earth-moon
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig places the Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics listener
}

// StreamConfig controls the websocket snapshot feed served next to /metrics.
type StreamConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	MaxFPS  float64 `mapstructure:"max_fps"` // 0 sends every tick
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Namespace   string  `mapstructure:"namespace"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("physics.g", core.DefaultG)
	v.SetDefault("physics.timestep", core.DefaultTimestep)
	v.SetDefault("physics.max_orbit_points", DefaultMaxOrbitPoints)
	v.SetDefault("physics.batched", false)
	v.SetDefault("physics.satellite_mode", "anchored")

	v.SetDefault("clock.mode", "realtime")
	v.SetDefault("clock.interval", timectrl.DefaultInterval)
	v.SetDefault("clock.max_ticks", 0)

	v.SetDefault("render.width", 800)
	v.SetDefault("render.height", 800)
	v.SetDefault("render.scale", 0.0)
	v.SetDefault("render.tps", 60)

	v.SetDefault("scenario.path", "")
	v.SetDefault("scenario.name", "default")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.max_fps", 30.0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "gravity-simulator")
	v.SetDefault("tracing.namespace", observability.DefaultNamespace)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if !(c.Physics.G > 0) {
		errs = append(errs, fmt.Errorf("physics.g must be positive, got %g", c.Physics.G))
	}
	if !(c.Physics.Timestep > 0) {
		errs = append(errs, fmt.Errorf("physics.timestep must be positive, got %g", c.Physics.Timestep))
	}
	if c.Physics.MaxOrbitPoints < 0 {
		errs = append(errs, fmt.Errorf("physics.max_orbit_points must not be negative"))
	}
	if _, err := core.ParseSatelliteMode(c.Physics.SatelliteMode); err != nil {
		errs = append(errs, fmt.Errorf("physics.satellite_mode: %w", err))
	}
	if _, err := timectrl.ParseMode(c.Clock.Mode); err != nil {
		errs = append(errs, fmt.Errorf("clock.mode: %w", err))
	}
	if c.Clock.Interval < 0 || c.Clock.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("clock.interval and clock.max_ticks must not be negative"))
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 || c.Render.TPS <= 0 {
		errs = append(errs, fmt.Errorf("render: width, height and tps must be positive"))
	}
	if c.Render.Scale < 0 {
		errs = append(errs, fmt.Errorf("render.scale must not be negative, got %g", c.Render.Scale))
	}
	if c.Scenario.Path == "" {
		switch c.Scenario.Name {
		case "default", "earth-moon":
		default:
			errs = append(errs, fmt.Errorf("scenario.name %q is not a built-in scenario", c.Scenario.Name))
		}
	}
	if c.Stream.MaxFPS < 0 {
		errs = append(errs, fmt.Errorf("stream.max_fps must not be negative"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// EngineParams converts the physics section for core.NewSimulationEngine.
func (c *Config) EngineParams() (core.Params, error) {
	mode, err := core.ParseSatelliteMode(c.Physics.SatelliteMode)
	if err != nil {
		return core.Params{}, err
	}
	return core.Params{
		G:             c.Physics.G,
		Timestep:      c.Physics.Timestep,
		Batched:       c.Physics.Batched,
		SatelliteMode: mode,
	}, nil
}

// BuildOptions returns the options for core.Scenario.Build.
func (c *Config) BuildOptions() core.BuildOptions {
	return core.BuildOptions{G: c.Physics.G, MaxOrbitPoints: c.Physics.MaxOrbitPoints}
}

// LoadScenario returns the configured scenario: the JSON file when a path is
// set, otherwise the named built-in.
func (c *Config) LoadScenario() (*core.Scenario, error) {
	if c.Scenario.Path != "" {
		f, err := os.Open(c.Scenario.Path)
		if err != nil {
			return nil, fmt.Errorf("open scenario: %w", err)
		}
		defer f.Close()
		return core.LoadScenario(f)
	}
	switch c.Scenario.Name {
	case "earth-moon":
		return core.EarthMoonScenario(), nil
	default:
		return core.DefaultScenario(), nil
	}
}

// TimeController builds the clock for headless and terminal runs.
func (c *Config) TimeController(start time.Time) (*timectrl.TimeController, error) {
	mode, err := timectrl.ParseMode(c.Clock.Mode)
	if err != nil {
		return nil, err
	}
	step := time.Duration(c.Physics.Timestep * float64(time.Second))
	tc := timectrl.NewTimeController(start, step, mode)
	tc.Interval = c.Clock.Interval
	return tc, nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// TracingSettings returns the tracer settings.
func (c *Config) TracingSettings() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Namespace:   c.Tracing.Namespace,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
