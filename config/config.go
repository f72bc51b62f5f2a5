// Package config loads simulation settings and scene files. Embedded
// defaults are overlaid by an optional YAML file on disk.
package config

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/milk9111/physync/physics/collision"
	"github.com/milk9111/physync/physics/steps"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Backends lists the accepted values of Config.Backend.
var Backends = []string{"chipmunk", "box2d", "rigid3d"}

// StepModes lists the accepted values of StepsConfig.Mode.
var StepModes = []string{"every_frame", "fixed_rate", "max_delta_time"}

//go:embed defaults.yaml scenes/*.yaml
var FS embed.FS

type Config struct {
	Backend  string         `yaml:"backend"`
	Steps    StepsConfig    `yaml:"steps"`
	Gravity  [3]float64     `yaml:"gravity"`
	Chipmunk ChipmunkConfig `yaml:"chipmunk"`
	Box2D    Box2DConfig    `yaml:"box2d"`
	Layers   []string       `yaml:"layers"`
	Scene    string         `yaml:"scene"`
	Log      LogConfig      `yaml:"log"`
}

type StepsConfig struct {
	Mode        string        `yaml:"mode"`
	Duration    time.Duration `yaml:"duration"`
	MaxSubsteps int           `yaml:"max_substeps"`
}

type ChipmunkConfig struct {
	Iterations uint `yaml:"iterations"`
}

type Box2DConfig struct {
	VelocityIterations int `yaml:"velocity_iterations"`
	PositionIterations int `yaml:"position_iterations"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	data, err := FS.ReadFile("defaults.yaml")
	if err != nil {
		return nil, fmt.Errorf("config: load defaults.yaml: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal defaults.yaml: %w", err)
	}
	return &cfg, nil
}

// Parse overlays data on the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg, err := Default()
		if err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Clone returns a copy of c that shares no slices with it.
func (c *Config) Clone() *Config {
	out := *c
	out.Layers = slices.Clone(c.Layers)
	return &out
}

func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if _, err := c.StepsPolicy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.NamedLayers(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// StepsPolicy converts the steps section to a step policy.
func (c *Config) StepsPolicy() (steps.Steps, error) {
	mode, err := steps.ParseMode(c.Steps.Mode)
	if err != nil {
		return steps.Steps{}, err
	}
	s := steps.Steps{Mode: mode, Duration: c.Steps.Duration, MaxSubsteps: c.Steps.MaxSubsteps}
	return s, s.Validate()
}

func (c *Config) GravityVec() mgl64.Vec3 {
	return mgl64.Vec3(c.Gravity)
}

func (c *Config) NamedLayers() (*collision.NamedLayers, error) {
	return collision.NewNamedLayers(c.Layers)
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// Planar reports whether the configured backend is two-dimensional.
func (c *Config) Planar() bool {
	return c.Backend != "rigid3d"
}
