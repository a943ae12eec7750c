package dynamics

import (
	"errors"
	"math"

	"github.com/0x5844/rigid2d/shape"
)

var (
	// ErrInvalidArgument reports a rejected parameter such as a negative
	// density or a non-finite time step.
	ErrInvalidArgument = errors.New("dynamics: invalid argument")
	// ErrLocked is returned for operations that cannot run while the world
	// is stepping.
	ErrLocked = errors.New("dynamics: world is locked")
	// ErrDestroyed is returned for operations on a destroyed body or fixture.
	ErrDestroyed = errors.New("dynamics: object destroyed")
)

// Solver tolerances. These are tuned for objects sized between 0.1 and 10
// meters.
const (
	// LinearSlop is the penetration allowed before position correction acts.
	LinearSlop = shape.LinearSlop
	// Baumgarte is the fraction of overlap resolved per position iteration.
	Baumgarte = 0.2
	// MaxLinearCorrection caps a single position correction.
	MaxLinearCorrection = 0.2
	// MaxTranslation caps the distance a body can travel in one step.
	MaxTranslation = 2.0
	// MaxRotation caps the angle a body can turn in one step.
	MaxRotation = 0.5 * math.Pi
	// VelocityThreshold is the approach speed below which collisions are
	// inelastic.
	VelocityThreshold = 1.0

	// LinearSleepTolerance and AngularSleepTolerance are the speeds below
	// which a body starts counting towards sleep.
	LinearSleepTolerance  = 0.01
	AngularSleepTolerance = 2.0 / 180.0 * math.Pi
	// TimeToSleep is how long a body must stay slow before it sleeps.
	TimeToSleep = 0.5

	maxConditionNumber = 1000.0
)

// Defaults for World options.
const (
	DefaultVelocityIterations = 8
	DefaultPositionIterations = 3
	DefaultCellSize           = 4.0
)

// Defaults for fixture materials.
const (
	DefaultDensity     = 1.0
	DefaultFriction    = 0.2
	DefaultRestitution = 0.0
)

// MixFriction combines two friction coefficients.
func MixFriction(a, b float64) float64 {
	return math.Sqrt(a * b)
}

// MixRestitution combines two restitution coefficients.
func MixRestitution(a, b float64) float64 {
	return max(a, b)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
