// Package runner drives a world in real time at a fixed frame rate and
// keeps frame timing statistics.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x5844/rigid2d/dynamics"
)

// ErrRunning is returned by Run while another Run is active.
var ErrRunning = errors.New("runner: engine already running")

const defaultHistorySize = 100

// StepFunc is called after every step, on the Run goroutine. Returning an
// error stops Run with that error.
type StepFunc func(w *dynamics.World) error

// Stats describes the frames run so far. Frame times are in seconds.
type Stats struct {
	FPS          float64
	Frames       int64
	AvgFrameTime float64
	MinFrameTime float64
	MaxFrameTime float64
	World        dynamics.Stats
	WorkerActive int64
	WorkerTotal  int64
}

// Engine steps a world once per frame.
type Engine struct {
	world     *dynamics.World
	timeStep  float64
	targetFPS int
	maxFrames int64
	onStep    []StepFunc
	running   atomic.Bool

	mu            sync.Mutex
	stats         Stats
	lastFrameTime time.Time
	frameTimeSum  float64
	frameHistory  []float64
	historySize   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeStep sets the simulated seconds per frame. It defaults to one
// frame period.
func WithTimeStep(dt float64) Option {
	return func(e *Engine) {
		if dt > 0 {
			e.timeStep = dt
		}
	}
}

// WithTargetFPS sets the frame rate.
func WithTargetFPS(fps int) Option {
	return func(e *Engine) {
		if fps > 0 {
			e.targetFPS = fps
		}
	}
}

// WithMaxFrames stops Run after n frames. Zero means no limit.
func WithMaxFrames(n int64) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxFrames = n
		}
	}
}

// WithOnStep adds a hook run after each step.
func WithOnStep(fn StepFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.onStep = append(e.onStep, fn)
		}
	}
}

// WithHistorySize sets how many recent frame times FrameHistory keeps.
func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historySize = n
		}
	}
}

// New creates an engine for world.
func New(world *dynamics.World, opts ...Option) *Engine {
	e := &Engine{
		world:       world,
		targetFPS:   60,
		historySize: defaultHistorySize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.timeStep == 0 {
		e.timeStep = 1.0 / float64(e.targetFPS)
	}
	e.frameHistory = make([]float64, 0, e.historySize)
	return e
}

// World returns the driven world. It must not be touched while Run is
// active except from step hooks.
func (e *Engine) World() *dynamics.World { return e.world }

// TimeStep returns the simulated seconds per frame.
func (e *Engine) TimeStep() float64 { return e.timeStep }

// Run steps the world on a ticker until ctx is done, the frame limit is
// reached or a step or hook fails. Each frame updates the world's
// controllers, steps it and runs the hooks. It returns ctx.Err() when
// cancelled and nil when the frame limit is reached.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	ticker := time.NewTicker(time.Second / time.Duration(e.targetFPS))
	defer ticker.Stop()

	e.mu.Lock()
	e.lastFrameTime = time.Now()
	e.mu.Unlock()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := e.frame(); err != nil {
				return err
			}
			e.updateStats(start)
			if e.maxFrames > 0 && e.Stats().Frames >= e.maxFrames {
				return nil
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) frame() error {
	e.world.UpdateControllers()
	if err := e.world.Step(e.timeStep); err != nil {
		return fmt.Errorf("runner: step: %w", err)
	}
	for _, fn := range e.onStep {
		if err := fn(e.world); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) updateStats(frameStart time.Time) {
	worldStats := e.world.Stats()
	active, total := e.world.WorkerStats()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	frameTime := now.Sub(e.lastFrameTime).Seconds()
	currentFrameTime := now.Sub(frameStart).Seconds()

	if frameTime > 0 {
		e.stats.FPS = 1.0 / frameTime
	}
	e.lastFrameTime = now
	e.stats.Frames++

	e.frameTimeSum += currentFrameTime
	e.stats.AvgFrameTime = e.frameTimeSum / float64(e.stats.Frames)

	if e.stats.Frames == 1 || currentFrameTime < e.stats.MinFrameTime {
		e.stats.MinFrameTime = currentFrameTime
	}
	if currentFrameTime > e.stats.MaxFrameTime {
		e.stats.MaxFrameTime = currentFrameTime
	}

	e.frameHistory = append(e.frameHistory, currentFrameTime)
	if len(e.frameHistory) > e.historySize {
		e.frameHistory = e.frameHistory[1:]
	}

	e.stats.World = worldStats
	e.stats.WorkerActive, e.stats.WorkerTotal = active, total
}

// Stats returns the statistics as of the last frame. It is safe to call
// while Run is active.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// FrameHistory returns the most recent frame times, oldest first.
func (e *Engine) FrameHistory() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.frameHistory...)
}
