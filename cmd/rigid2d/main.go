// Command rigid2d runs a physics simulation in real time from a scene file
// or a generated scene, optionally streaming it to browsers and rendering
// the final frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/0x5844/rigid2d"
	"github.com/0x5844/rigid2d/debugdraw"
	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/internal/runner"
	"github.com/0x5844/rigid2d/scene"
	"github.com/0x5844/rigid2d/viewer"
)

func main() {
	opts, err := parseFlags(os.Args[0], os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("rigid2d version %s\n", Version)
		fmt.Printf("Built: %s\n", BuildTime)
		if GoVersion == "unknown" {
			GoVersion = runtime.Version()
		}
		fmt.Printf("Go: %s\n", GoVersion)
		return
	}

	logger := newLogger(os.Stderr, opts)
	rigid2d.SetLogger(slog.New(logger))

	if err := run(opts, logger); err != nil {
		logger.Fatal("Simulation failed", "err", err)
	}
}

func newLogger(w io.Writer, opts *cliOptions) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "rigid2d",
		Level:           log.InfoLevel,
	})
	switch {
	case opts.quiet:
		logger.SetLevel(log.ErrorLevel)
	case opts.verbose:
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	}
	return logger
}

func run(opts *cliOptions, logger *log.Logger) error {
	s := &opts.settings

	// Set up profiling
	if opts.profileCPU != "" {
		f, err := os.Create(opts.profileCPU)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	if opts.saveConfig != "" {
		if err := s.Save(opts.saveConfig); err != nil {
			return err
		}
		logger.Info("Saved settings", "path", opts.saveConfig)
	}

	logger.Info("Starting rigid2d", "version", Version)
	logger.Info("CPU cores", "cores", runtime.NumCPU(), "workers", s.Workers)

	world := s.NewWorld()
	defer world.Close()

	duration := s.Duration
	if opts.sceneFile != "" {
		f, err := scene.LoadFile(opts.sceneFile)
		if err != nil {
			return err
		}
		if _, err := f.Build(world); err != nil {
			return err
		}
		if f.Duration > 0 {
			duration = f.Duration
		}
		logger.Info("Loaded scene", "path", opts.sceneFile, "bodies", world.BodyCount())
	} else {
		seed := s.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		mat := scene.Material{Density: s.Density, Friction: s.Friction, Restitution: s.Restitution}
		if _, err := scene.Generate(world, s.SceneType, s.BodiesCount, seed, mat); err != nil {
			return err
		}
		logger.Info("Generated scene", "type", s.SceneType, "bodies", world.BodyCount(), "seed", seed)
	}
	if opts.damping > 0 {
		for _, b := range world.Bodies() {
			if b.Type() == dynamics.DynamicBody {
				b.SetLinearDamping(opts.damping)
			}
		}
	}

	// Create context for simulation control
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, time.Duration(duration*float64(time.Second)))
		defer stop()
	}

	engineOpts := []runner.Option{
		runner.WithTargetFPS(s.TargetFPS),
		runner.WithTimeStep(s.TimeStep),
	}
	if opts.serve != "" {
		hub, shutdown, err := serve(opts.serve, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		engineOpts = append(engineOpts, runner.WithOnStep(func(w *dynamics.World) error {
			if hub.Clients() == 0 {
				return nil
			}
			return hub.Publish(viewer.Capture(w))
		}))
	}
	engine := runner.New(world, engineOpts...)

	// Start statistics reporting
	if !opts.quiet {
		go reportStats(ctx, logger, engine, s.StatsInterval, opts.verbose)
	}

	logger.Info("Physics simulation started", "fps", s.TargetFPS, "workers", s.Workers)
	if duration > 0 {
		logger.Infof("Simulation duration: %.2f seconds", duration)
	} else {
		logger.Info("Press Ctrl+C to stop")
	}

	err := engine.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutting down gracefully...")
	}

	if opts.snapshot != "" {
		if err := renderSnapshot(opts, world); err != nil {
			logger.Error("Could not render snapshot", "err", err)
		} else {
			logger.Info("Wrote snapshot", "path", opts.snapshot)
		}
	}
	if opts.dumpScene != "" {
		if err := scene.Capture(world).Save(opts.dumpScene); err != nil {
			logger.Error("Could not write scene", "err", err)
		} else {
			logger.Info("Wrote scene", "path", opts.dumpScene)
		}
	}

	// Memory profiling
	if opts.profileMem != "" {
		if err := writeHeapProfile(opts.profileMem); err != nil {
			logger.Error("Could not write memory profile", "err", err)
		}
	}

	// Final statistics
	st := engine.Stats()
	logger.Info("Simulation completed",
		"fps", fmt.Sprintf("%.1f", st.FPS),
		"bodies", st.World.Bodies,
		"steps", st.World.Steps,
		"frames", st.Frames)
	if duration > 0 && st.World.Steps > 0 {
		logger.Infof("Average steps/second: %.1f", float64(st.World.Steps)/duration)
	}
	return nil
}

// serve starts the snapshot stream on addr and returns a function that
// stops it.
func serve(addr string, logger *log.Logger) (*viewer.Hub, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	hub := viewer.NewHub()
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Viewer server stopped", "err", err)
		}
	}()
	logger.Info("Streaming snapshots", "url", "ws://"+ln.Addr().String()+"/ws")

	return hub, func() {
		_ = hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func renderSnapshot(opts *cliOptions, world *dynamics.World) error {
	r, err := debugdraw.New(opts.snapWidth, opts.snapHeight, debugdraw.WithContacts(opts.verbose))
	if err != nil {
		return err
	}
	defer r.Close()
	r.Fit(world)
	return r.SavePNG(opts.snapshot, world)
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

func reportStats(ctx context.Context, logger *log.Logger, engine *runner.Engine, interval float64, verbose bool) {
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := engine.Stats()
			if verbose {
				logger.Infof("FPS: %.1f | Bodies: %d (Awake: %d) | Contacts: %d (Touching: %d) | "+
					"Frame: %.2f/%.2f/%.2f ms | Workers: %d/%d",
					st.FPS, st.World.Bodies, st.World.AwakeBodies, st.World.Contacts, st.World.TouchingContacts,
					st.AvgFrameTime*1000, st.MinFrameTime*1000, st.MaxFrameTime*1000,
					st.WorkerActive, st.WorkerTotal)
			} else {
				logger.Infof("FPS: %.1f | Bodies: %d | Awake: %d | Contacts: %d",
					st.FPS, st.World.Bodies, st.World.AwakeBodies, st.World.TouchingContacts)
			}

		case <-ctx.Done():
			return
		}
	}
}
