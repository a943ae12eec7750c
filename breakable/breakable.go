// Package breakable provides bodies that shatter into their parts when hit
// hard enough.
//
// A breakable Body starts as one dynamic body with a fixture per part. It
// watches the world's post-solve impulses; once a contact on any part
// carries a normal impulse above the strength, the body is marked broken.
// Nothing changes during the step. The next Update replaces the body with
// one dynamic body per part, each moving with the velocity the whole body
// had.
//
// Update is normally driven by World.UpdateControllers from the game loop:
//
//	for running {
//	    world.UpdateControllers()
//	    world.Step(dt)
//	}
package breakable

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d"
	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/shape"
)

// ErrNoParts is returned when a breakable body is built without parts.
var ErrNoParts = fmt.Errorf("%w: breakable body needs at least one part", dynamics.ErrInvalidArgument)

// Body is a dynamic body that decomposes into its parts under impact.
type Body struct {
	world    *dynamics.World
	main     *dynamics.Body
	parts    []*dynamics.Fixture
	owned    map[*dynamics.Fixture]struct{}
	strength float64
	sub      dynamics.Subscription

	broken     bool
	decomposed bool
	detached   bool
	bodies     []*dynamics.Body
}

// New builds a breakable body from convex vertex groups, one part per
// group, in body coordinates around position. Strength is the largest
// normal impulse, in newton-seconds, a contact may carry without breaking
// the body.
func New(world *dynamics.World, vertexGroups [][]mgl64.Vec2, density, strength float64, position mgl64.Vec2, opts ...dynamics.FixtureOption) (*Body, error) {
	shapes := make([]*shape.Shape, 0, len(vertexGroups))
	for i, group := range vertexGroups {
		s, err := shape.NewPolygon(group)
		if err != nil {
			return nil, fmt.Errorf("breakable: part %d: %w", i, err)
		}
		shapes = append(shapes, s)
	}
	return NewFromShapes(world, shapes, density, strength, position, opts...)
}

// NewFromShapes builds a breakable body from arbitrary shapes. The shapes
// are copied.
func NewFromShapes(world *dynamics.World, shapes []*shape.Shape, density, strength float64, position mgl64.Vec2, opts ...dynamics.FixtureOption) (*Body, error) {
	if world == nil {
		return nil, fmt.Errorf("%w: nil world", dynamics.ErrInvalidArgument)
	}
	if !(strength > 0) || math.IsInf(strength, 1) {
		return nil, fmt.Errorf("%w: strength %v", dynamics.ErrInvalidArgument, strength)
	}
	if len(shapes) == 0 {
		return nil, ErrNoParts
	}

	main, err := world.CreateBody(dynamics.DynamicBody, position, 0)
	if err != nil {
		return nil, fmt.Errorf("breakable: %w", err)
	}
	bb := &Body{
		world:    world,
		main:     main,
		owned:    make(map[*dynamics.Fixture]struct{}, len(shapes)),
		strength: strength,
	}
	fixtureOpts := append([]dynamics.FixtureOption{dynamics.WithDensity(density)}, opts...)
	for i, s := range shapes {
		f, err := main.CreateFixture(s, nil, fixtureOpts...)
		if err != nil {
			err = fmt.Errorf("breakable: part %d: %w", i, err)
			if derr := world.DestroyBody(main); derr != nil {
				err = errors.Join(err, derr)
			}
			return nil, err
		}
		bb.parts = append(bb.parts, f)
		bb.owned[f] = struct{}{}
	}
	main.SetUserData(bb)

	bb.sub = world.OnPostSolve(bb.onPostSolve)
	world.AddController(bb)
	return bb, nil
}

// onPostSolve flags the body once a contact on one of its parts exceeds
// the strength. The world is locked here, so nothing else changes.
func (bb *Body) onPostSolve(c *dynamics.Contact, impulse *dynamics.ContactImpulse) {
	if bb.broken {
		return
	}
	_, a := bb.owned[c.FixtureA()]
	_, b := bb.owned[c.FixtureB()]
	if !a && !b {
		return
	}
	if impulse.MaxNormal() > bb.strength {
		bb.broken = true
	}
}

// Break marks the body broken. It is decomposed on the next Update.
// Calling Break more than once has no further effect.
func (bb *Body) Break() { bb.broken = true }

// IsBroken reports whether the body has been marked broken. Once true it
// stays true.
func (bb *Body) IsBroken() bool { return bb.broken }

// IsDecomposed reports whether the body has been replaced by its parts.
func (bb *Body) IsDecomposed() bool { return bb.decomposed }

// Strength returns the breaking impulse.
func (bb *Body) Strength() float64 { return bb.strength }

// MainBody returns the body holding all parts. After decomposition it is
// destroyed.
func (bb *Body) MainBody() *dynamics.Body { return bb.main }

// Parts returns the fixtures of the unbroken body.
func (bb *Body) Parts() []*dynamics.Fixture {
	return append([]*dynamics.Fixture(nil), bb.parts...)
}

// Bodies returns the bodies created by decomposition, one per part, in
// part order. It is empty before decomposition.
func (bb *Body) Bodies() []*dynamics.Body {
	return append([]*dynamics.Body(nil), bb.bodies...)
}

// IsDetached reports whether the body has stopped watching the world,
// either after decomposition or because its main body was destroyed by
// other code.
func (bb *Body) IsDetached() bool { return bb.detached }

// Update decomposes the body if it is broken. It must be called outside
// of World.Step; while the world is locked it does nothing and the next
// Update tries again. If the main body was destroyed elsewhere, Update
// detaches the body from the world instead.
func (bb *Body) Update() {
	if bb.detached || bb.world.IsLocked() {
		return
	}
	if bb.main.IsDestroyed() {
		bb.detach()
		rigid2d.Logger().Debug("breakable: main body destroyed, detaching", "body", bb.main.ID().String())
		return
	}
	if !bb.broken || bb.decomposed {
		return
	}
	if err := bb.Decompose(); err != nil {
		rigid2d.Logger().Error("breakable: decompose failed", "body", bb.main.ID().String(), "err", err)
	}
}

type partState struct {
	shape       *shape.Shape
	density     float64
	friction    float64
	restitution float64
	sensor      bool
	filter      dynamics.Filter
	userData    any
}

// Decompose replaces the main body with one body per part immediately,
// whether or not the body is broken. Each new body takes the main body's
// pose and velocity.
func (bb *Body) Decompose() error {
	if bb.decomposed {
		return nil
	}
	if bb.world.IsLocked() {
		return dynamics.ErrLocked
	}
	if bb.main.IsDestroyed() {
		bb.detach()
		return dynamics.ErrDestroyed
	}

	position, angle := bb.main.Position(), bb.main.Angle()
	velocity, spin := bb.main.LinearVelocity(), bb.main.AngularVelocity()

	states := make([]partState, 0, len(bb.parts))
	for _, f := range bb.parts {
		states = append(states, partState{
			shape:       f.Shape().Clone(),
			density:     f.Density(),
			friction:    f.Friction(),
			restitution: f.Restitution(),
			sensor:      f.IsSensor(),
			filter:      f.Filter(),
			userData:    f.UserData(),
		})
	}

	bodies := make([]*dynamics.Body, 0, len(states))
	rollback := func() {
		for _, b := range bodies {
			_ = bb.world.DestroyBody(b)
		}
	}
	for i, st := range states {
		b, err := bb.world.CreateBody(dynamics.DynamicBody, position, angle)
		if err != nil {
			rollback()
			return fmt.Errorf("breakable: part %d: %w", i, err)
		}
		bodies = append(bodies, b)
		_, err = b.CreateFixture(st.shape, st.userData,
			dynamics.WithDensity(st.density),
			dynamics.WithFriction(st.friction),
			dynamics.WithRestitution(st.restitution),
			dynamics.WithSensor(st.sensor),
			dynamics.WithFilter(st.filter))
		if err != nil {
			rollback()
			return fmt.Errorf("breakable: part %d: %w", i, err)
		}
		b.SetLinearVelocity(velocity)
		b.SetAngularVelocity(spin)
	}

	if err := bb.world.DestroyBody(bb.main); err != nil && !errors.Is(err, dynamics.ErrDestroyed) {
		rollback()
		return fmt.Errorf("breakable: destroy main body: %w", err)
	}
	bb.detach()

	bb.bodies = bodies
	bb.parts = nil
	clear(bb.owned)
	bb.broken = true
	bb.decomposed = true

	rigid2d.Logger().Info("breakable: decomposed",
		"body", bb.main.ID().String(),
		"parts", len(bodies),
		"velocity", velocity)
	return nil
}

// detach stops listening for impulses and leaves the controller list.
func (bb *Body) detach() {
	if bb.detached {
		return
	}
	bb.world.Unsubscribe(bb.sub)
	bb.world.RemoveController(bb)
	bb.detached = true
}
