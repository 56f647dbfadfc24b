// Package config loads simulator settings from an optional file, ORBITSIM_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/orbit-attitude-sim/core"
	"github.com/signalsfoundry/orbit-attitude-sim/model"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

// EnvPrefix prefixes every environment override, e.g. ORBITSIM_SIMULATION_ITERATIONS.
const EnvPrefix = "ORBITSIM"

// DefaultCatalogURL is the CelesTrak space stations listing.
const DefaultCatalogURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle"

// Config is the full simulator configuration.
type Config struct {
	Simulation Simulation `mapstructure:"simulation"`
	Catalog    Catalog    `mapstructure:"catalog"`
	Attitude   Attitude   `mapstructure:"attitude"`
	Render     Render     `mapstructure:"render"`
	Server     Server     `mapstructure:"server"`
}

// Simulation controls the clock.
type Simulation struct {
	StartDay     float64       `mapstructure:"start_day"`
	TicksPerDay  int           `mapstructure:"ticks_per_day"`
	Iterations   int           `mapstructure:"iterations"`
	Mode         string        `mapstructure:"mode"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// Catalog selects where TLE records come from. Path wins over URL.
type Catalog struct {
	URL     string `mapstructure:"url"`
	Path    string `mapstructure:"path"`
	Retries int    `mapstructure:"retries"`
}

// Attitude configures the controlled satellites.
type Attitude struct {
	Controlled       int     `mapstructure:"controlled"`
	DisturbanceBound int     `mapstructure:"disturbance_bound"`
	DisturbedScale   float64 `mapstructure:"disturbed_scale"`
	CorrectedScale   float64 `mapstructure:"corrected_scale"`
	Seed             uint64  `mapstructure:"seed"`
}

// Render selects and sizes the renderer.
type Render struct {
	Renderer    string            `mapstructure:"renderer"`
	StreamPath  string            `mapstructure:"stream_path"`
	EarthRadius float64           `mapstructure:"earth_radius"`
	EarthScale  float64           `mapstructure:"earth_scale"`
	ViewExtent  float64           `mapstructure:"view_extent"`
	Colors      map[string]string `mapstructure:"colors"` // entity ID -> hex
}

// Server holds listen addresses; empty disables the endpoint.
type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
	HealthAddr  string `mapstructure:"health_addr"`
}

// Renderer names accepted by Render.Renderer.
const (
	RendererTerminal = "terminal"
	RendererStream   = "stream"
	RendererNone     = "none"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Simulation: Simulation{
			StartDay:     2459549,
			TicksPerDay:  timectrl.DefaultTicksPerDay,
			Iterations:   10,
			Mode:         timectrl.Accelerated.String(),
			TickInterval: 50 * time.Millisecond,
		},
		Catalog: Catalog{
			URL:     DefaultCatalogURL,
			Retries: 5,
		},
		Attitude: Attitude{
			DisturbanceBound: core.DefaultDisturbanceBound,
			DisturbedScale:   core.DefaultDisturbedArrowScale,
			CorrectedScale:   core.DefaultCorrectedArrowScale,
		},
		Render: Render{
			Renderer:    RendererTerminal,
			EarthRadius: core.EarthRadiusKm,
			EarthScale:  0.8,
			ViewExtent:  7000,
		},
	}
}

// Load reads path (if non-empty) and applies environment overrides on top of
// the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("simulation.start_day", d.Simulation.StartDay)
	v.SetDefault("simulation.ticks_per_day", d.Simulation.TicksPerDay)
	v.SetDefault("simulation.iterations", d.Simulation.Iterations)
	v.SetDefault("simulation.mode", d.Simulation.Mode)
	v.SetDefault("simulation.tick_interval", d.Simulation.TickInterval)

	v.SetDefault("catalog.url", d.Catalog.URL)
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.retries", d.Catalog.Retries)

	v.SetDefault("attitude.controlled", d.Attitude.Controlled)
	v.SetDefault("attitude.disturbance_bound", d.Attitude.DisturbanceBound)
	v.SetDefault("attitude.disturbed_scale", d.Attitude.DisturbedScale)
	v.SetDefault("attitude.corrected_scale", d.Attitude.CorrectedScale)
	v.SetDefault("attitude.seed", d.Attitude.Seed)

	v.SetDefault("render.renderer", d.Render.Renderer)
	v.SetDefault("render.stream_path", d.Render.StreamPath)
	v.SetDefault("render.earth_radius", d.Render.EarthRadius)
	v.SetDefault("render.earth_scale", d.Render.EarthScale)
	v.SetDefault("render.view_extent", d.Render.ViewExtent)

	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("server.health_addr", d.Server.HealthAddr)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Simulation.TicksPerDay <= 0 {
		errs = append(errs, fmt.Errorf("simulation.ticks_per_day must be positive, got %d", c.Simulation.TicksPerDay))
	}
	if c.Simulation.Iterations < 0 {
		errs = append(errs, fmt.Errorf("simulation.iterations must be non-negative, got %d", c.Simulation.Iterations))
	}
	switch strings.ToLower(c.Simulation.Mode) {
	case "realtime", "real-time", "accelerated":
	default:
		errs = append(errs, fmt.Errorf("simulation.mode %q is not realtime or accelerated", c.Simulation.Mode))
	}
	if c.Simulation.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("simulation.tick_interval must be non-negative, got %s", c.Simulation.TickInterval))
	}
	if c.Catalog.URL == "" && c.Catalog.Path == "" {
		errs = append(errs, errors.New("one of catalog.url or catalog.path is required"))
	}
	if c.Attitude.Controlled < 0 {
		errs = append(errs, fmt.Errorf("attitude.controlled must be non-negative, got %d", c.Attitude.Controlled))
	}
	if c.Attitude.DisturbanceBound < 0 || c.Attitude.DisturbanceBound > core.MaxDisturbanceBound {
		errs = append(errs, fmt.Errorf("attitude.disturbance_bound must be within [0, %d], got %d", core.MaxDisturbanceBound, c.Attitude.DisturbanceBound))
	}
	switch c.Render.Renderer {
	case RendererTerminal, RendererNone:
	case RendererStream:
		if c.Render.StreamPath == "" {
			errs = append(errs, errors.New("render.stream_path is required for the stream renderer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown renderer %q", c.Render.Renderer))
	}
	if c.Render.ViewExtent <= 0 {
		errs = append(errs, fmt.Errorf("render.view_extent must be positive, got %v", c.Render.ViewExtent))
	}
	for id, hex := range c.Render.Colors {
		if _, err := model.ParseColor(hex); err != nil {
			errs = append(errs, fmt.Errorf("render.colors[%s]: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ColorFor returns the configured color for an entity. Keys are matched
// case-insensitively since viper lowercases map keys.
func (c Config) ColorFor(id string) (model.Color, bool) {
	hex, ok := c.Render.Colors[strings.ToLower(id)]
	if !ok {
		hex, ok = c.Render.Colors[id]
	}
	if !ok {
		return model.Color{}, false
	}
	col, err := model.ParseColor(hex)
	if err != nil {
		return model.Color{}, false
	}
	return col, true
}
