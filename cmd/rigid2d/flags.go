package main

import (
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/0x5844/rigid2d/config"
)

// Build information (set by build script)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

type cliOptions struct {
	settings config.Settings

	// Files
	configPath string
	saveConfig string
	sceneFile  string
	dumpScene  string

	// Output settings
	verbose    bool
	quiet      bool
	profileCPU string
	profileMem string
	snapshot   string
	snapWidth  int
	snapHeight int
	serve      string

	// Engine settings
	damping float64

	showVersion bool
}

func bindFlags(fs *flag.FlagSet, o *cliOptions) {
	s := &o.settings

	// Simulation parameters
	fs.Float64Var(&s.Gravity[0], "gravity-x", s.Gravity[0], "gravity X component")
	fs.Float64Var(&s.Gravity[1], "gravity-y", s.Gravity[1], "gravity Y component")
	fs.Float64Var(&s.TimeStep, "timestep", s.TimeStep, "physics time step")
	fs.Float64Var(&s.Duration, "duration", s.Duration, "simulation duration in seconds (0 = infinite)")
	fs.IntVar(&s.TargetFPS, "fps", s.TargetFPS, "maximum frames per second")

	// Performance settings
	fs.IntVar(&s.Workers, "workers", s.Workers, "number of narrow-phase workers")
	fs.IntVar(&s.VelocityIterations, "iterations", s.VelocityIterations, "velocity solver iterations")
	fs.IntVar(&s.PositionIterations, "position-iterations", s.PositionIterations, "position solver iterations")
	fs.BoolVar(&s.Sleeping, "sleep", s.Sleeping, "enable body sleeping")
	fs.BoolVar(&s.WarmStarting, "warm-start", s.WarmStarting, "reuse last step's impulses")
	fs.Float64Var(&s.CellSize, "cell-size", s.CellSize, "broad-phase grid cell size")

	// Output settings
	fs.BoolVar(&o.verbose, "verbose", o.verbose, "verbose output")
	fs.BoolVar(&o.quiet, "quiet", o.quiet, "minimal output")
	fs.Float64Var(&s.StatsInterval, "stats-interval", s.StatsInterval, "statistics reporting interval")
	fs.StringVar(&o.profileCPU, "profile-cpu", o.profileCPU, "CPU profile output file")
	fs.StringVar(&o.profileMem, "profile-mem", o.profileMem, "memory profile output file")
	fs.StringVar(&o.snapshot, "snapshot", o.snapshot, "PNG file to render the final frame to")
	fs.IntVar(&o.snapWidth, "snapshot-width", o.snapWidth, "snapshot width in pixels")
	fs.IntVar(&o.snapHeight, "snapshot-height", o.snapHeight, "snapshot height in pixels")
	fs.StringVar(&o.serve, "serve", o.serve, "address to stream snapshots on, e.g. :8080")

	// Scene settings
	fs.StringVar(&o.sceneFile, "scene", o.sceneFile, "JSON or YAML scene file to load")
	fs.StringVar(&o.dumpScene, "dump-scene", o.dumpScene, "write the final world state as a scene file")
	fs.IntVar(&s.BodiesCount, "bodies", s.BodiesCount, "number of bodies for generated scenes")
	fs.StringVar(&s.SceneType, "scene-type", s.SceneType, "scene type (default, pyramid, rain, container, mixed, wall)")
	fs.Int64Var(&s.Seed, "seed", s.Seed, "random seed for generated scenes (0 = time based)")

	// Engine settings
	fs.Float64Var(&o.damping, "damping", o.damping, "linear damping of generated and loaded dynamic bodies")
	fs.Float64Var(&s.Density, "density", s.Density, "default density")
	fs.Float64Var(&s.Restitution, "restitution", s.Restitution, "default restitution")
	fs.Float64Var(&s.Friction, "friction", s.Friction, "default friction")

	// Config files
	fs.StringVar(&o.configPath, "config", o.configPath, "JSON or YAML settings file; flags override it")
	fs.StringVar(&o.saveConfig, "save-config", o.saveConfig, "write the effective settings to this file")

	// Version flag
	fs.BoolVar(&o.showVersion, "version", o.showVersion, "show version information")
}

func defaultOptions() cliOptions {
	return cliOptions{
		settings:   config.Default(),
		snapWidth:  800,
		snapHeight: 600,
	}
}

func usage(fs *flag.FlagSet, name string) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "rigid2d - 2D rigid body physics engine\n\n")
		fmt.Fprintf(out, "Usage: %s [OPTIONS]\n\n", name)
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  %s -bodies 500 -scene-type pyramid\n", name)
		fmt.Fprintf(out, "  %s -scene scene.yaml -duration 10 -snapshot final.png\n", name)
		fmt.Fprintf(out, "  %s -scene-type wall -serve :8080\n", name)
		fmt.Fprintf(out, "  %s -config engine.yaml -profile-cpu cpu.prof -verbose\n", name)
		fmt.Fprintf(out, "\nVersion: %s\n", Version)
	}
}

// parseFlags parses args over the defaults. When -config names a file, its
// settings replace the defaults and flags given on the command line still
// win.
func parseFlags(name string, args []string, output io.Writer) (*cliOptions, error) {
	o := defaultOptions()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	bindFlags(fs, &o)
	fs.Usage = usage(fs, name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.showVersion || o.configPath == "" {
		return &o, validateOptions(&o)
	}

	loaded, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	layered := defaultOptions()
	layered.settings = loaded
	fs = flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bindFlags(fs, &layered)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &layered, validateOptions(&layered)
}

func validateOptions(o *cliOptions) error {
	if o.showVersion {
		return nil
	}
	if err := o.settings.Validate(); err != nil {
		return err
	}
	if o.snapWidth < 1 || o.snapHeight < 1 {
		return fmt.Errorf("snapshot size must be positive")
	}
	if o.damping < 0 || math.IsNaN(o.damping) || math.IsInf(o.damping, 0) {
		return fmt.Errorf("damping cannot be negative")
	}
	if o.verbose && o.quiet {
		return fmt.Errorf("-verbose and -quiet are mutually exclusive")
	}
	return nil
}
