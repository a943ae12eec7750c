// Package config holds engine settings and reads and writes them as JSON or
// YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/0x5844/rigid2d/dynamics"
)

// ErrInvalidConfig is returned by Validate and Load for out-of-range
// settings.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// SceneTypes lists the procedural scenes the engine can generate.
var SceneTypes = []string{"default", "pyramid", "rain", "container", "mixed", "wall"}

// Settings configures a simulation run.
type Settings struct {
	// Simulation parameters
	Gravity   mgl64.Vec2 `json:"gravity" yaml:"gravity"`
	TimeStep  float64    `json:"timestep" yaml:"timestep"`
	Duration  float64    `json:"duration" yaml:"duration"`
	TargetFPS int        `json:"fps" yaml:"fps"`

	// Solver settings
	VelocityIterations int     `json:"velocity_iterations" yaml:"velocity_iterations"`
	PositionIterations int     `json:"position_iterations" yaml:"position_iterations"`
	WarmStarting       bool    `json:"warm_starting" yaml:"warm_starting"`
	Sleeping           bool    `json:"sleeping" yaml:"sleeping"`
	Workers            int     `json:"workers" yaml:"workers"`
	CellSize           float64 `json:"cell_size" yaml:"cell_size"`

	// Default materials for generated scenes
	Density     float64 `json:"density" yaml:"density"`
	Friction    float64 `json:"friction" yaml:"friction"`
	Restitution float64 `json:"restitution" yaml:"restitution"`

	// Scene settings
	SceneType   string `json:"scene_type" yaml:"scene_type"`
	BodiesCount int    `json:"bodies" yaml:"bodies"`
	Seed        int64  `json:"seed" yaml:"seed"`

	// Output settings
	StatsInterval float64 `json:"stats_interval" yaml:"stats_interval"`
}

// Default returns the settings used when no file or flag overrides them.
func Default() Settings {
	return Settings{
		Gravity:            mgl64.Vec2{0, -9.81},
		TimeStep:           1.0 / 60.0,
		TargetFPS:          60,
		VelocityIterations: dynamics.DefaultVelocityIterations,
		PositionIterations: dynamics.DefaultPositionIterations,
		WarmStarting:       true,
		Sleeping:           true,
		Workers:            runtime.NumCPU(),
		CellSize:           dynamics.DefaultCellSize,
		Density:            dynamics.DefaultDensity,
		Friction:           0.3,
		Restitution:        0.1,
		SceneType:          "default",
		BodiesCount:        100,
		StatsInterval:      2.0,
	}
}

func finite(v ...float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Validate checks every setting and returns the first problem found.
func (s *Settings) Validate() error {
	switch {
	case !finite(s.Gravity[0], s.Gravity[1]):
		return fmt.Errorf("%w: gravity must be finite", ErrInvalidConfig)
	case !finite(s.TimeStep) || s.TimeStep <= 0:
		return fmt.Errorf("%w: timestep must be positive", ErrInvalidConfig)
	case !finite(s.Duration) || s.Duration < 0:
		return fmt.Errorf("%w: duration cannot be negative", ErrInvalidConfig)
	case s.TargetFPS < 1 || s.TargetFPS > 1000:
		return fmt.Errorf("%w: fps must be between 1 and 1000", ErrInvalidConfig)
	case s.VelocityIterations < 1:
		return fmt.Errorf("%w: velocity iterations must be at least 1", ErrInvalidConfig)
	case s.PositionIterations < 0:
		return fmt.Errorf("%w: position iterations cannot be negative", ErrInvalidConfig)
	case s.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	case !finite(s.CellSize) || s.CellSize <= 0:
		return fmt.Errorf("%w: cell size must be positive", ErrInvalidConfig)
	case !finite(s.Density) || s.Density <= 0:
		return fmt.Errorf("%w: density must be positive", ErrInvalidConfig)
	case !finite(s.Friction) || s.Friction < 0:
		return fmt.Errorf("%w: friction cannot be negative", ErrInvalidConfig)
	case !finite(s.Restitution) || s.Restitution < 0:
		return fmt.Errorf("%w: restitution cannot be negative", ErrInvalidConfig)
	case s.BodiesCount < 1:
		return fmt.Errorf("%w: bodies count must be at least 1", ErrInvalidConfig)
	case !slices.Contains(SceneTypes, s.SceneType):
		return fmt.Errorf("%w: invalid scene type: %s", ErrInvalidConfig, s.SceneType)
	case !finite(s.StatsInterval) || s.StatsInterval <= 0:
		return fmt.Errorf("%w: stats interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// WorldOptions converts the solver settings to world options.
func (s *Settings) WorldOptions() []dynamics.Option {
	return []dynamics.Option{
		dynamics.WithVelocityIterations(s.VelocityIterations),
		dynamics.WithPositionIterations(s.PositionIterations),
		dynamics.WithWarmStarting(s.WarmStarting),
		dynamics.WithSleeping(s.Sleeping),
		dynamics.WithWorkers(s.Workers),
		dynamics.WithCellSize(s.CellSize),
	}
}

// NewWorld creates a world from the settings.
func (s *Settings) NewWorld(opts ...dynamics.Option) *dynamics.World {
	return dynamics.NewWorld(s.Gravity, append(s.WorldOptions(), opts...)...)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads settings from a JSON or YAML file, chosen by extension.
// Fields missing from the file keep their defaults. A missing file yields
// Default() and no error.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, &s)
	} else {
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Default(), fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

// Save writes settings to path as JSON or YAML, chosen by extension,
// creating the directory if needed.
func (s *Settings) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "\t")
	}
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
