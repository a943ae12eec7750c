package dynamics

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/shape"
)

// BodyType selects how a body responds to forces and contacts.
type BodyType uint8

const (
	// Static bodies never move and have infinite mass.
	StaticBody BodyType = iota
	// Kinematic bodies move under their velocity only.
	KinematicBody
	// Dynamic bodies respond to forces, gravity and contacts.
	DynamicBody
)

func (t BodyType) String() string {
	switch t {
	case StaticBody:
		return "static"
	case KinematicBody:
		return "kinematic"
	case DynamicBody:
		return "dynamic"
	}
	return fmt.Sprintf("BodyType(%d)", uint8(t))
}

// ParseBodyType converts a name produced by BodyType.String.
func ParseBodyType(s string) (BodyType, error) {
	switch s {
	case "static":
		return StaticBody, nil
	case "kinematic":
		return KinematicBody, nil
	case "dynamic", "":
		return DynamicBody, nil
	}
	return 0, fmt.Errorf("%w: unknown body type %q", ErrInvalidArgument, s)
}

// Body is a rigid body. Bodies are created with World.CreateBody and own
// their fixtures.
type Body struct {
	world *World
	id    ID
	typ   BodyType

	xf    geom.Transform
	sweep geom.Sweep

	linearVelocity  mgl64.Vec2
	angularVelocity float64
	force           mgl64.Vec2
	torque          float64

	mass, invMass float64
	inertia, invI float64 // about the center of mass

	linearDamping  float64
	angularDamping float64
	gravityScale   float64
	fixedRotation  bool

	awake           bool
	sleepingAllowed bool
	sleepTime       float64

	fixtures []*Fixture
	contacts []*Contact

	userData  any
	destroyed bool
	pending   bool

	// solver scratch
	solverIndex int
	islandRoot  int
}

func newBody(w *World, typ BodyType, position mgl64.Vec2, angle float64) *Body {
	b := &Body{
		world:           w,
		typ:             typ,
		xf:              geom.NewTransform(position, angle),
		gravityScale:    1,
		sleepingAllowed: true,
		awake:           typ != StaticBody,
		solverIndex:     -1,
	}
	b.sweep = geom.Sweep{C0: position, C: position, A0: angle, A: angle}
	b.resetMassData()
	return b
}

// ID returns the body's identifier within its world.
func (b *Body) ID() ID { return b.id }

// World returns the world the body belongs to.
func (b *Body) World() *World { return b.world }

// Type returns the body type.
func (b *Body) Type() BodyType { return b.typ }

// IsDestroyed reports whether the body has been destroyed. A body whose
// destruction was requested during a step reports true immediately.
func (b *Body) IsDestroyed() bool { return b.destroyed || b.pending }

func (b *Body) Position() mgl64.Vec2      { return b.xf.P }
func (b *Body) Angle() float64            { return b.sweep.A }
func (b *Body) Transform() geom.Transform { return b.xf }

// WorldCenter returns the center of mass in world coordinates.
func (b *Body) WorldCenter() mgl64.Vec2 { return b.sweep.C }

// LocalCenter returns the center of mass in body coordinates.
func (b *Body) LocalCenter() mgl64.Vec2 { return b.sweep.LocalCenter }

func (b *Body) LinearVelocity() mgl64.Vec2 { return b.linearVelocity }
func (b *Body) AngularVelocity() float64   { return b.angularVelocity }

// Mass returns the body mass in kilograms; zero for non-dynamic bodies.
func (b *Body) Mass() float64 { return b.mass }

// InvMass returns the inverse mass; zero for non-dynamic bodies.
func (b *Body) InvMass() float64 { return b.invMass }

// Inertia returns the rotational inertia about the center of mass.
func (b *Body) Inertia() float64 { return b.inertia }

// InvInertia returns the inverse rotational inertia.
func (b *Body) InvInertia() float64 { return b.invI }

func (b *Body) LinearDamping() float64  { return b.linearDamping }
func (b *Body) AngularDamping() float64 { return b.angularDamping }
func (b *Body) GravityScale() float64   { return b.gravityScale }
func (b *Body) IsFixedRotation() bool   { return b.fixedRotation }
func (b *Body) IsAwake() bool           { return b.awake }
func (b *Body) IsSleepingAllowed() bool { return b.sleepingAllowed }
func (b *Body) UserData() any           { return b.userData }
func (b *Body) SetUserData(v any)       { b.userData = v }

// SetLinearDamping sets the linear velocity decay rate. Negative or
// non-finite values are ignored.
func (b *Body) SetLinearDamping(d float64) {
	if d >= 0 && finite(d) {
		b.linearDamping = d
	}
}

// SetAngularDamping sets the angular velocity decay rate. Negative or
// non-finite values are ignored.
func (b *Body) SetAngularDamping(d float64) {
	if d >= 0 && finite(d) {
		b.angularDamping = d
	}
}

func (b *Body) SetGravityScale(s float64) {
	if finite(s) {
		b.gravityScale = s
	}
}

// SetFixedRotation prevents the body from rotating.
func (b *Body) SetFixedRotation(fixed bool) {
	if b.fixedRotation == fixed {
		return
	}
	b.fixedRotation = fixed
	b.angularVelocity = 0
	b.resetMassData()
}

// SetSleepingAllowed controls whether the body may fall asleep. Disallowing
// sleep wakes the body.
func (b *Body) SetSleepingAllowed(allowed bool) {
	b.sleepingAllowed = allowed
	if !allowed {
		b.SetAwake(true)
	}
}

// SetAwake wakes the body or puts it to sleep. Sleeping clears velocities
// and accumulated forces. Static bodies are never awake.
func (b *Body) SetAwake(awake bool) {
	if b.typ == StaticBody {
		return
	}
	if awake {
		if !b.awake {
			b.awake = true
			b.sleepTime = 0
		}
		return
	}
	b.awake = false
	b.sleepTime = 0
	b.linearVelocity = mgl64.Vec2{}
	b.angularVelocity = 0
	b.force = mgl64.Vec2{}
	b.torque = 0
}

// Fixtures returns the body's fixtures in creation order.
func (b *Body) Fixtures() []*Fixture {
	return slices.Clone(b.fixtures)
}

// Contacts returns the contacts involving the body.
func (b *Body) Contacts() []*Contact {
	return slices.Clone(b.contacts)
}

// SetLinearVelocity sets the velocity of the center of mass.
func (b *Body) SetLinearVelocity(v mgl64.Vec2) {
	if b.typ == StaticBody || !geom.IsFinite(v) {
		return
	}
	if v.Dot(v) > 0 {
		b.SetAwake(true)
	}
	b.linearVelocity = v
}

// SetAngularVelocity sets the angular velocity in radians per second.
func (b *Body) SetAngularVelocity(w float64) {
	if b.typ == StaticBody || !finite(w) {
		return
	}
	if w != 0 {
		b.SetAwake(true)
	}
	b.angularVelocity = w
}

func (b *Body) canApply() bool {
	return b.typ == DynamicBody && !b.IsDestroyed()
}

// ApplyForce applies a force at a world point. The force is accumulated
// until the next step and wakes the body.
func (b *Body) ApplyForce(force, point mgl64.Vec2) {
	if !b.canApply() || !geom.IsFinite(force) || !geom.IsFinite(point) {
		return
	}
	b.SetAwake(true)
	b.force = b.force.Add(force)
	b.torque += geom.Cross(point.Sub(b.sweep.C), force)
}

// ApplyForceToCenter applies a force at the center of mass.
func (b *Body) ApplyForceToCenter(force mgl64.Vec2) {
	if !b.canApply() || !geom.IsFinite(force) {
		return
	}
	b.SetAwake(true)
	b.force = b.force.Add(force)
}

// ApplyTorque applies a torque about the center of mass.
func (b *Body) ApplyTorque(torque float64) {
	if !b.canApply() || !finite(torque) {
		return
	}
	b.SetAwake(true)
	b.torque += torque
}

// ApplyLinearImpulse applies an impulse at a world point. Unlike forces,
// impulses change the velocity immediately.
func (b *Body) ApplyLinearImpulse(impulse, point mgl64.Vec2) {
	if !b.canApply() || !geom.IsFinite(impulse) || !geom.IsFinite(point) {
		return
	}
	b.SetAwake(true)
	b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
	b.angularVelocity += b.invI * geom.Cross(point.Sub(b.sweep.C), impulse)
}

// ApplyLinearImpulseToCenter applies an impulse at the center of mass.
func (b *Body) ApplyLinearImpulseToCenter(impulse mgl64.Vec2) {
	if !b.canApply() || !geom.IsFinite(impulse) {
		return
	}
	b.SetAwake(true)
	b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
}

// ApplyAngularImpulse applies an angular impulse.
func (b *Body) ApplyAngularImpulse(impulse float64) {
	if !b.canApply() || !finite(impulse) {
		return
	}
	b.SetAwake(true)
	b.angularVelocity += b.invI * impulse
}

// Force returns the force accumulated since the last step.
func (b *Body) Force() mgl64.Vec2 { return b.force }

// Torque returns the torque accumulated since the last step.
func (b *Body) Torque() float64 { return b.torque }

// SetTransform teleports the body. Its proxies are moved and it is woken.
func (b *Body) SetTransform(position mgl64.Vec2, angle float64) error {
	if b.IsDestroyed() {
		return ErrDestroyed
	}
	if !geom.IsFinite(position) || !finite(angle) {
		return fmt.Errorf("%w: non-finite transform", ErrInvalidArgument)
	}
	if b.world.locked {
		return ErrLocked
	}

	b.xf = geom.NewTransform(position, angle)
	b.sweep.C = b.xf.Apply(b.sweep.LocalCenter)
	b.sweep.A = angle
	b.sweep.C0 = b.sweep.C
	b.sweep.A0 = angle

	for _, f := range b.fixtures {
		f.synchronize(b.xf, b.xf)
	}
	b.SetAwake(true)
	return nil
}

// SetType changes the body type. Mass is recomputed, contacts are rebuilt
// on the next step and the body is woken.
func (b *Body) SetType(typ BodyType) error {
	if b.IsDestroyed() {
		return ErrDestroyed
	}
	if typ > DynamicBody {
		return fmt.Errorf("%w: body type %d", ErrInvalidArgument, typ)
	}
	if b.world.locked {
		return ErrLocked
	}
	if b.typ == typ {
		return nil
	}
	if typ == DynamicBody {
		for _, f := range b.fixtures {
			if f.density == 0 {
				return fmt.Errorf("%w: fixture with zero density on dynamic body", ErrInvalidArgument)
			}
		}
	}

	b.typ = typ
	b.resetMassData()
	if typ == StaticBody {
		b.linearVelocity = mgl64.Vec2{}
		b.angularVelocity = 0
		b.sweep.A0 = b.sweep.A
		b.sweep.C0 = b.sweep.C
		b.awake = false
		for _, f := range b.fixtures {
			f.synchronize(b.xf, b.xf)
		}
	} else {
		b.SetAwake(true)
	}
	b.force = mgl64.Vec2{}
	b.torque = 0

	// Contacts depend on the type pair; rebuild them.
	b.world.locked = true
	for len(b.contacts) > 0 {
		b.world.destroyContact(b.contacts[0])
	}
	b.world.locked = false
	for _, f := range b.fixtures {
		b.world.grid.TouchProxy(f.proxy)
	}
	b.world.applyPendingRemovals()
	return nil
}

// WorldPoint converts a point in body coordinates to world coordinates.
func (b *Body) WorldPoint(local mgl64.Vec2) mgl64.Vec2 { return b.xf.Apply(local) }

// LocalPoint converts a world point to body coordinates.
func (b *Body) LocalPoint(world mgl64.Vec2) mgl64.Vec2 { return b.xf.ApplyInv(world) }

// WorldVector rotates a body-frame vector into the world frame.
func (b *Body) WorldVector(local mgl64.Vec2) mgl64.Vec2 { return b.xf.Q.MulVec(local) }

// LocalVector rotates a world vector into the body frame.
func (b *Body) LocalVector(world mgl64.Vec2) mgl64.Vec2 { return b.xf.Q.MulTVec(world) }

// LinearVelocityFromWorldPoint returns the velocity of a world point
// attached to the body.
func (b *Body) LinearVelocityFromWorldPoint(p mgl64.Vec2) mgl64.Vec2 {
	return b.linearVelocity.Add(geom.CrossSV(b.angularVelocity, p.Sub(b.sweep.C)))
}

// LinearVelocityFromLocalPoint returns the velocity of a body-frame point.
func (b *Body) LinearVelocityFromLocalPoint(p mgl64.Vec2) mgl64.Vec2 {
	return b.LinearVelocityFromWorldPoint(b.WorldPoint(p))
}

// resetMassData recomputes mass, center of mass and inertia from the
// fixtures. Dynamic bodies without mass get a unit mass.
func (b *Body) resetMassData() {
	b.mass, b.invMass = 0, 0
	b.inertia, b.invI = 0, 0
	b.sweep.LocalCenter = mgl64.Vec2{}

	if b.typ != DynamicBody {
		b.sweep.C0 = b.xf.P
		b.sweep.C = b.xf.P
		b.sweep.A0 = b.sweep.A
		return
	}

	var localCenter mgl64.Vec2
	rotInertia := 0.0
	for _, f := range b.fixtures {
		if f.density == 0 {
			continue
		}
		md := f.shape.ComputeMass(f.density)
		b.mass += md.Mass
		localCenter = localCenter.Add(md.Center.Mul(md.Mass))
		rotInertia += md.I
	}

	if b.mass > 0 {
		b.invMass = 1 / b.mass
		localCenter = localCenter.Mul(b.invMass)
	} else {
		b.mass = 1
		b.invMass = 1
	}

	if rotInertia > 0 && !b.fixedRotation {
		// Shift inertia from the body origin to the center of mass.
		b.inertia = rotInertia - b.mass*localCenter.Dot(localCenter)
		if b.inertia > 0 {
			b.invI = 1 / b.inertia
		} else {
			b.inertia = 0
		}
	}

	oldCenter := b.sweep.C
	b.sweep.LocalCenter = localCenter
	b.sweep.C = b.xf.Apply(localCenter)
	b.sweep.C0 = b.sweep.C

	// Keep the velocity of the body origin unchanged.
	b.linearVelocity = b.linearVelocity.Add(geom.CrossSV(b.angularVelocity, b.sweep.C.Sub(oldCenter)))
}

func (b *Body) synchronizeTransform() {
	b.xf = b.sweep.Transform()
}

// synchronizeFixtures moves the fixture proxies from the pose at the start
// of the step to the current pose.
func (b *Body) synchronizeFixtures() {
	q := geom.NewRot(b.sweep.A0)
	xf0 := geom.Transform{Q: q, P: b.sweep.C0.Sub(q.MulVec(b.sweep.LocalCenter))}
	for _, f := range b.fixtures {
		f.synchronize(xf0, b.xf)
	}
}

func (b *Body) shouldCollide(other *Body) bool {
	return b.typ == DynamicBody || other.typ == DynamicBody
}

func (b *Body) removeContact(c *Contact) {
	if i := slices.Index(b.contacts, c); i >= 0 {
		b.contacts = slices.Delete(b.contacts, i, i+1)
	}
}

// CreateFixture attaches a copy of s to the body. The body's mass is
// recomputed. It fails with shape.ErrInvalidGeometry for a bad shape and
// ErrInvalidArgument for bad material values.
func (b *Body) CreateFixture(s *shape.Shape, userData any, opts ...FixtureOption) (*Fixture, error) {
	if b.IsDestroyed() {
		return nil, ErrDestroyed
	}
	if b.world.locked {
		return nil, ErrLocked
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("dynamics: create fixture: %w", err)
	}

	def := defaultFixtureDef()
	for _, opt := range opts {
		opt(&def)
	}
	if err := def.validate(b.typ); err != nil {
		return nil, err
	}

	f := &Fixture{
		body:        b,
		shape:       s.Clone(),
		density:     def.density,
		friction:    def.friction,
		restitution: def.restitution,
		sensor:      def.sensor,
		filter:      def.filter,
		userData:    userData,
	}
	f.id = ID(b.world.fixtures.Insert(f))
	f.createProxy(b.world.grid, b.xf)
	b.fixtures = append(b.fixtures, f)
	b.resetMassData()
	return f, nil
}

// DestroyFixture removes f from the body. During a step the removal is
// deferred until the step ends.
func (b *Body) DestroyFixture(f *Fixture) error {
	if f == nil || f.body != b {
		return fmt.Errorf("%w: fixture does not belong to body", ErrInvalidArgument)
	}
	return b.world.DestroyFixture(f)
}
