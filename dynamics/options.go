package dynamics

import "log/slog"

// Option configures a World during creation.
//
// Example:
//
//	w := dynamics.NewWorld(mgl64.Vec2{0, -10},
//	    dynamics.WithVelocityIterations(10),
//	    dynamics.WithWorkers(4))
type Option func(*worldOptions)

type worldOptions struct {
	velocityIterations int
	positionIterations int
	warmStarting       bool
	sleeping           bool
	workers            int
	cellSize           float64
	logger             *slog.Logger
}

func defaultOptions() worldOptions {
	return worldOptions{
		velocityIterations: DefaultVelocityIterations,
		positionIterations: DefaultPositionIterations,
		warmStarting:       true,
		sleeping:           true,
		workers:            1,
		cellSize:           DefaultCellSize,
	}
}

// WithVelocityIterations sets the number of velocity solver passes per
// step. Values below 1 are ignored.
func WithVelocityIterations(n int) Option {
	return func(o *worldOptions) {
		if n >= 1 {
			o.velocityIterations = n
		}
	}
}

// WithPositionIterations sets the number of position correction passes per
// step. Zero disables position correction.
func WithPositionIterations(n int) Option {
	return func(o *worldOptions) {
		if n >= 0 {
			o.positionIterations = n
		}
	}
}

// WithWarmStarting toggles reuse of the previous step's impulses.
func WithWarmStarting(enabled bool) Option {
	return func(o *worldOptions) {
		o.warmStarting = enabled
	}
}

// WithSleeping toggles putting resting bodies to sleep.
func WithSleeping(enabled bool) Option {
	return func(o *worldOptions) {
		o.sleeping = enabled
	}
}

// WithWorkers sets how many goroutines update contact manifolds. Events
// are still dispatched on the stepping goroutine in contact order, so the
// simulation is identical for any worker count.
func WithWorkers(n int) Option {
	return func(o *worldOptions) {
		if n >= 1 {
			o.workers = n
		}
	}
}

// WithCellSize sets the broad-phase grid cell size in meters.
func WithCellSize(size float64) Option {
	return func(o *worldOptions) {
		if size > 0 && finite(size) {
			o.cellSize = size
		}
	}
}

// WithLogger overrides the package logger for one world.
func WithLogger(l *slog.Logger) Option {
	return func(o *worldOptions) {
		o.logger = l
	}
}
