package dynamics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/broadphase"
	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/shape"
)

// Filter holds collision filtering data. Two fixtures collide when each
// one's category is in the other's mask, unless they share a non-zero
// group: a positive group always collides, a negative group never does.
type Filter struct {
	Category uint16 `json:"category" yaml:"category"`
	Mask     uint16 `json:"mask" yaml:"mask"`
	Group    int16  `json:"group" yaml:"group"`
}

// DefaultFilter collides with everything.
func DefaultFilter() Filter {
	return Filter{Category: 0x0001, Mask: 0xFFFF}
}

// ShouldCollide applies the filter rules to a pair.
func (f Filter) ShouldCollide(o Filter) bool {
	if f.Group == o.Group && f.Group != 0 {
		return f.Group > 0
	}
	return f.Mask&o.Category != 0 && f.Category&o.Mask != 0
}

// FixtureOption configures a fixture in Body.CreateFixture.
type FixtureOption func(*fixtureDef)

type fixtureDef struct {
	density     float64
	friction    float64
	restitution float64
	sensor      bool
	filter      Filter
}

func defaultFixtureDef() fixtureDef {
	return fixtureDef{
		density:     DefaultDensity,
		friction:    DefaultFriction,
		restitution: DefaultRestitution,
		filter:      DefaultFilter(),
	}
}

func (d *fixtureDef) validate(typ BodyType) error {
	switch {
	case !finite(d.density) || d.density < 0:
		return fmt.Errorf("%w: density %v", ErrInvalidArgument, d.density)
	case d.density == 0 && typ == DynamicBody:
		return fmt.Errorf("%w: zero density on dynamic body", ErrInvalidArgument)
	case !finite(d.friction) || d.friction < 0:
		return fmt.Errorf("%w: friction %v", ErrInvalidArgument, d.friction)
	case !finite(d.restitution) || d.restitution < 0:
		return fmt.Errorf("%w: restitution %v", ErrInvalidArgument, d.restitution)
	}
	return nil
}

func WithDensity(density float64) FixtureOption {
	return func(d *fixtureDef) { d.density = density }
}

func WithFriction(friction float64) FixtureOption {
	return func(d *fixtureDef) { d.friction = friction }
}

func WithRestitution(restitution float64) FixtureOption {
	return func(d *fixtureDef) { d.restitution = restitution }
}

// WithSensor makes the fixture detect overlaps without colliding.
func WithSensor(sensor bool) FixtureOption {
	return func(d *fixtureDef) { d.sensor = sensor }
}

func WithFilter(filter Filter) FixtureOption {
	return func(d *fixtureDef) { d.filter = filter }
}

// Fixture attaches a shape and material to a body.
type Fixture struct {
	body  *Body
	id    ID
	shape *shape.Shape

	density     float64
	friction    float64
	restitution float64
	sensor      bool
	filter      Filter

	proxy broadphase.ProxyID
	aabb  geom.AABB

	userData  any
	destroyed bool
	pending   bool
}

// Body returns the owning body.
func (f *Fixture) Body() *Body { return f.body }

// ID returns the fixture's identifier within its world.
func (f *Fixture) ID() ID { return f.id }

// Shape returns the fixture's shape. It must not be modified.
func (f *Fixture) Shape() *shape.Shape { return f.shape }

func (f *Fixture) Density() float64     { return f.density }
func (f *Fixture) Friction() float64    { return f.friction }
func (f *Fixture) Restitution() float64 { return f.restitution }
func (f *Fixture) IsSensor() bool       { return f.sensor }
func (f *Fixture) Filter() Filter       { return f.filter }
func (f *Fixture) UserData() any        { return f.userData }
func (f *Fixture) SetUserData(v any)    { f.userData = v }

// AABB returns the tight world bounds computed at the last synchronization.
func (f *Fixture) AABB() geom.AABB { return f.aabb }

// IsDestroyed reports whether the fixture was destroyed or is pending
// destruction.
func (f *Fixture) IsDestroyed() bool { return f.destroyed || f.pending }

// SetDensity changes the density and recomputes the body mass.
func (f *Fixture) SetDensity(density float64) error {
	if f.IsDestroyed() {
		return ErrDestroyed
	}
	if f.body.world.locked {
		return ErrLocked
	}
	def := fixtureDef{density: density, filter: f.filter}
	if err := def.validate(f.body.typ); err != nil {
		return err
	}
	f.density = density
	f.body.resetMassData()
	return nil
}

// SetFriction changes the friction coefficient. Existing contacts keep
// their mixed value until they are recreated.
func (f *Fixture) SetFriction(friction float64) error {
	if !finite(friction) || friction < 0 {
		return fmt.Errorf("%w: friction %v", ErrInvalidArgument, friction)
	}
	f.friction = friction
	return nil
}

// SetRestitution changes the restitution coefficient. Existing contacts
// keep their mixed value until they are recreated.
func (f *Fixture) SetRestitution(restitution float64) error {
	if !finite(restitution) || restitution < 0 {
		return fmt.Errorf("%w: restitution %v", ErrInvalidArgument, restitution)
	}
	f.restitution = restitution
	return nil
}

// SetSensor toggles sensor mode and wakes the body.
func (f *Fixture) SetSensor(sensor bool) {
	if sensor != f.sensor {
		f.body.SetAwake(true)
		f.sensor = sensor
	}
}

// SetFilter replaces the collision filter. Contacts are re-filtered on the
// next step.
func (f *Fixture) SetFilter(filter Filter) {
	f.filter = filter
	if f.IsDestroyed() {
		return
	}
	for _, c := range f.body.contacts {
		if c.fixtureA == f || c.fixtureB == f {
			c.flagForFiltering()
		}
	}
	f.body.world.grid.TouchProxy(f.proxy)
}

// TestPoint reports whether a world point is inside the fixture.
func (f *Fixture) TestPoint(p mgl64.Vec2) bool {
	return f.shape.TestPoint(f.body.xf, p)
}

// RayCast casts a ray against the fixture at the body's current pose.
func (f *Fixture) RayCast(in geom.RayInput) (geom.RayOutput, bool) {
	return f.shape.RayCast(in, f.body.xf)
}

// MassData returns the fixture's contribution to the body mass.
func (f *Fixture) MassData() shape.MassData {
	return f.shape.ComputeMass(f.density)
}

func (f *Fixture) createProxy(grid *broadphase.Grid, xf geom.Transform) {
	f.aabb = f.shape.ComputeAABB(xf)
	f.proxy = grid.CreateProxy(f.aabb, f)
}

func (f *Fixture) destroyProxy(grid *broadphase.Grid) {
	grid.DestroyProxy(f.proxy)
	f.proxy = broadphase.ProxyID{}
}

// synchronize updates the proxy to cover the swept bounds between two
// poses.
func (f *Fixture) synchronize(xf1, xf2 geom.Transform) {
	aabb1 := f.shape.ComputeAABB(xf1)
	aabb2 := f.shape.ComputeAABB(xf2)
	f.aabb = aabb2
	displacement := xf2.P.Sub(xf1.P)
	f.body.world.grid.MoveProxy(f.proxy, aabb1.Union(aabb2), displacement)
}
