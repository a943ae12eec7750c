// Package dynamics simulates rigid bodies: bodies and their fixtures,
// contacts between fixtures, a sequential impulse contact solver and the
// World that steps them.
//
// A World is not safe for concurrent use. Callbacks run on the goroutine
// that calls Step; destroying bodies or fixtures from a callback is
// deferred until the step finishes.
package dynamics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d"
	"github.com/0x5844/rigid2d/broadphase"
	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/internal/arena"
	"github.com/0x5844/rigid2d/internal/pool"
)

// ID identifies a body, fixture or contact within a world. IDs of destroyed
// objects are never reissued for the same slot generation.
type ID struct {
	Index uint32
	Gen   uint32
}

// Less orders IDs by slot, then generation.
func (id ID) Less(o ID) bool { return arena.Handle(id).Less(arena.Handle(o)) }

func (id ID) String() string { return fmt.Sprintf("%d.%d", id.Index, id.Gen) }

// Controller is a per-frame collaborator updated by the game loop through
// World.UpdateControllers, outside of Step.
type Controller interface {
	Update()
}

// Stats summarizes the world after the last step.
type Stats struct {
	Steps            int64 `json:"steps"`
	Bodies           int   `json:"bodies"`
	AwakeBodies      int   `json:"awake_bodies"`
	Contacts         int   `json:"contacts"`
	TouchingContacts int   `json:"touching_contacts"`
	SkippedContacts  int   `json:"skipped_contacts"`
	Proxies          int   `json:"proxies"`
}

type pairKey struct {
	a, b ID
}

func makePairKey(a, b ID) pairKey {
	if b.Less(a) {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// World owns bodies, fixtures and contacts and advances them in time.
type World struct {
	gravity mgl64.Vec2
	opts    worldOptions

	bodies   *arena.Arena[*Body]
	fixtures *arena.Arena[*Fixture]
	contacts *arena.Arena[*Contact]
	pairs    map[pairKey]*Contact
	grid     *broadphase.Grid
	workers  *pool.WorkerPool

	events      eventHub
	controllers []Controller

	locked          bool
	pendingBodies   []*Body
	pendingFixtures []*Fixture

	solver  contactSolver
	islands islands
	active  []*Contact
	stats   Stats
}

// NewWorld creates an empty world with the given gravity.
func NewWorld(gravity mgl64.Vec2, opts ...Option) *World {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	w := &World{
		gravity:  gravity,
		opts:     o,
		bodies:   arena.New[*Body](64),
		fixtures: arena.New[*Fixture](64),
		contacts: arena.New[*Contact](256),
		pairs:    make(map[pairKey]*Contact),
		grid:     broadphase.NewGrid(o.cellSize),
	}
	if o.workers > 1 {
		w.workers = pool.New(o.workers)
	}
	w.log().Info("dynamics: world created",
		"gravity", gravity,
		"velocityIterations", o.velocityIterations,
		"positionIterations", o.positionIterations,
		"workers", o.workers)
	return w
}

func (w *World) log() *slog.Logger {
	if w.opts.logger != nil {
		return w.opts.logger
	}
	return rigid2d.Logger()
}

// Close releases the narrow-phase workers. The world stays usable and
// steps on the calling goroutine afterwards.
func (w *World) Close() {
	if w.workers != nil {
		w.workers.Close()
		w.workers = nil
	}
}

func (w *World) Gravity() mgl64.Vec2 { return w.gravity }

// SetGravity changes gravity. Non-finite values are ignored.
func (w *World) SetGravity(g mgl64.Vec2) {
	if geom.IsFinite(g) {
		w.gravity = g
	}
}

// IsLocked reports whether the world is in the middle of a step.
func (w *World) IsLocked() bool { return w.locked }

func (w *World) VelocityIterations() int { return w.opts.velocityIterations }
func (w *World) PositionIterations() int { return w.opts.positionIterations }
func (w *World) Workers() int            { return w.opts.workers }

// WorkerStats returns the running and completed narrow-phase tasks. Both
// are zero for a serial world.
func (w *World) WorkerStats() (active, total int64) {
	if w.workers == nil {
		return 0, 0
	}
	return w.workers.Stats()
}

// CreateBody adds a body with no fixtures. It fails with ErrLocked during a
// step and ErrInvalidArgument for a non-finite pose.
func (w *World) CreateBody(typ BodyType, position mgl64.Vec2, angle float64) (*Body, error) {
	if w.locked {
		return nil, ErrLocked
	}
	if typ > DynamicBody {
		return nil, fmt.Errorf("%w: body type %d", ErrInvalidArgument, typ)
	}
	if !geom.IsFinite(position) || !finite(angle) {
		return nil, fmt.Errorf("%w: non-finite body pose", ErrInvalidArgument)
	}
	b := newBody(w, typ, position, angle)
	b.id = ID(w.bodies.Insert(b))
	return b, nil
}

// DestroyBody destroys a body with its fixtures and contacts. During a step
// the destruction is deferred until the step ends.
func (w *World) DestroyBody(b *Body) error {
	if b == nil || b.world != w {
		return fmt.Errorf("%w: body does not belong to world", ErrInvalidArgument)
	}
	if b.IsDestroyed() {
		return ErrDestroyed
	}
	if w.locked {
		b.pending = true
		w.pendingBodies = append(w.pendingBodies, b)
		return nil
	}
	w.locked = true
	w.destroyBodyNow(b)
	w.locked = false
	w.applyPendingRemovals()
	return nil
}

// DestroyFixture destroys a fixture and every contact that references it.
// During a step the destruction is deferred until the step ends.
func (w *World) DestroyFixture(f *Fixture) error {
	if f == nil || f.body == nil || f.body.world != w {
		return fmt.Errorf("%w: fixture does not belong to world", ErrInvalidArgument)
	}
	if f.IsDestroyed() {
		return ErrDestroyed
	}
	if w.locked {
		f.pending = true
		w.pendingFixtures = append(w.pendingFixtures, f)
		return nil
	}
	w.locked = true
	w.destroyFixtureNow(f)
	w.locked = false
	w.applyPendingRemovals()
	return nil
}

func (w *World) destroyFixtureNow(f *Fixture) {
	if f.destroyed {
		return
	}
	b := f.body
	var doomed []*Contact
	for _, c := range b.contacts {
		if c.Involves(f) {
			doomed = append(doomed, c)
		}
	}
	for _, c := range doomed {
		w.destroyContact(c)
	}

	f.destroyProxy(w.grid)
	for i, other := range b.fixtures {
		if other == f {
			b.fixtures = append(b.fixtures[:i], b.fixtures[i+1:]...)
			break
		}
	}
	w.fixtures.Retire(arena.Handle(f.id))
	f.destroyed = true
	f.pending = false
	b.resetMassData()
}

func (w *World) destroyBodyNow(b *Body) {
	if b.destroyed {
		return
	}
	for len(b.fixtures) > 0 {
		w.destroyFixtureNow(b.fixtures[0])
	}
	for len(b.contacts) > 0 {
		w.destroyContact(b.contacts[0])
	}
	w.bodies.Retire(arena.Handle(b.id))
	b.destroyed = true
	b.pending = false
}

// applyPendingRemovals runs deferred destructions, including any requested
// by end-contact callbacks along the way, then reclaims arena slots.
func (w *World) applyPendingRemovals() {
	prev := w.locked
	w.locked = true
	for len(w.pendingFixtures) > 0 || len(w.pendingBodies) > 0 {
		fixtures := w.pendingFixtures
		w.pendingFixtures = nil
		for _, f := range fixtures {
			w.destroyFixtureNow(f)
		}
		bodies := w.pendingBodies
		w.pendingBodies = nil
		for _, b := range bodies {
			w.destroyBodyNow(b)
		}
	}
	w.locked = prev

	w.bodies.Sweep()
	w.fixtures.Sweep()
	w.contacts.Sweep()
}

// Bodies returns the live bodies in ID order.
func (w *World) Bodies() []*Body {
	out := make([]*Body, 0, w.bodies.Len())
	w.bodies.Each(func(_ arena.Handle, b *Body) bool {
		if !b.IsDestroyed() {
			out = append(out, b)
		}
		return true
	})
	return out
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int { return w.bodies.Len() - len(w.pendingBodies) }

// Contacts returns the live contacts in ID order, touching or not.
func (w *World) Contacts() []*Contact {
	out := make([]*Contact, 0, w.contacts.Len())
	w.contacts.Each(func(_ arena.Handle, c *Contact) bool {
		out = append(out, c)
		return true
	})
	return out
}

// ContactCount returns the number of live contacts.
func (w *World) ContactCount() int { return w.contacts.Len() }

// Stats returns counters describing the last step.
func (w *World) Stats() Stats {
	s := w.stats
	s.Bodies = w.BodyCount()
	s.AwakeBodies = 0
	w.bodies.Each(func(_ arena.Handle, b *Body) bool {
		if b.awake && !b.IsDestroyed() {
			s.AwakeBodies++
		}
		return true
	})
	s.Contacts = w.contacts.Len()
	s.TouchingContacts = 0
	w.contacts.Each(func(_ arena.Handle, c *Contact) bool {
		if c.touching {
			s.TouchingContacts++
		}
		return true
	})
	s.Proxies = w.grid.ProxyCount()
	return s
}

// AddController registers c for UpdateControllers. Registering twice has
// no effect.
func (w *World) AddController(c Controller) {
	for _, existing := range w.controllers {
		if existing == c {
			return
		}
	}
	w.controllers = append(w.controllers, c)
}

// RemoveController unregisters c and reports whether it was registered.
func (w *World) RemoveController(c Controller) bool {
	for i, existing := range w.controllers {
		if existing == c {
			w.controllers = append(w.controllers[:i:i], w.controllers[i+1:]...)
			return true
		}
	}
	return false
}

// Controllers returns the registered controllers in registration order.
func (w *World) Controllers() []Controller {
	return append([]Controller(nil), w.controllers...)
}

// UpdateControllers calls Update on every registered controller.
// Controllers may add or remove controllers, including themselves.
func (w *World) UpdateControllers() {
	for _, c := range w.Controllers() {
		c.Update()
	}
}

// Step advances the world by dt seconds:
//
//	update broad phase → update contacts → solve → post-solve events
//	→ apply pending removals
//
// A dt of zero updates contacts and fires contact events without moving
// anything.
func (w *World) Step(dt float64) error {
	if !finite(dt) || dt < 0 {
		return fmt.Errorf("%w: time step %v", ErrInvalidArgument, dt)
	}
	if w.locked {
		return ErrLocked
	}
	w.locked = true

	w.updateBroadPhase()
	w.updateContacts()
	w.stats.SkippedContacts = 0
	if dt > 0 {
		w.solve(dt)
		w.postSolve()
	}

	w.locked = false
	w.applyPendingRemovals()
	w.stats.Steps++
	return nil
}

func (w *World) updateBroadPhase() {
	w.grid.UpdatePairs(w.addPair)
}

// addPair creates a contact for a new broad-phase pair.
func (w *World) addPair(userDataA, userDataB any) {
	fA, _ := userDataA.(*Fixture)
	fB, _ := userDataB.(*Fixture)
	if fA == nil || fB == nil || fA.IsDestroyed() || fB.IsDestroyed() {
		return
	}
	bA, bB := fA.body, fB.body
	if bA == bB || bA.IsDestroyed() || bB.IsDestroyed() {
		return
	}
	key := makePairKey(fA.id, fB.id)
	if _, ok := w.pairs[key]; ok {
		return
	}
	if !bA.shouldCollide(bB) || !fA.filter.ShouldCollide(fB.filter) {
		return
	}

	// Narrow-phase routines expect polygons before circles.
	if fA.shape.Kind < fB.shape.Kind {
		fA, fB = fB, fA
		bA, bB = bB, bA
	}
	c := newContact(fA, fB)
	c.id = ID(w.contacts.Insert(c))
	w.pairs[key] = c
	bA.contacts = append(bA.contacts, c)
	bB.contacts = append(bB.contacts, c)
}

// destroyContact removes a contact, firing end-contact if it was touching.
func (w *World) destroyContact(c *Contact) {
	if c.destroyed {
		return
	}
	c.destroyed = true
	fA, fB := c.fixtureA, c.fixtureB
	if c.touching {
		w.fireEndContact(c)
		fA.body.SetAwake(true)
		fB.body.SetAwake(true)
	}
	fA.body.removeContact(c)
	fB.body.removeContact(c)
	delete(w.pairs, makePairKey(fA.id, fB.id))
	w.contacts.Retire(arena.Handle(c.id))
}

// updateContacts refreshes every active contact's manifold. Contacts whose
// proxies separated or whose filter now rejects the pair are destroyed.
func (w *World) updateContacts() {
	active := w.active[:0]
	w.contacts.Each(func(_ arena.Handle, c *Contact) bool {
		fA, fB := c.fixtureA, c.fixtureB
		bA, bB := fA.body, fB.body

		if c.filterFlag {
			if !bA.shouldCollide(bB) || !fA.filter.ShouldCollide(fB.filter) {
				w.destroyContact(c)
				return true
			}
			c.filterFlag = false
		}

		activeA := bA.awake && bA.typ != StaticBody
		activeB := bB.awake && bB.typ != StaticBody
		if !activeA && !activeB {
			return true
		}
		if !w.grid.TestOverlap(fA.proxy, fB.proxy) {
			w.destroyContact(c)
			return true
		}
		active = append(active, c)
		return true
	})
	w.active = active

	evaluate := func(lo, hi int) error {
		for _, c := range active[lo:hi] {
			c.evaluate()
		}
		return nil
	}
	if w.workers == nil {
		_ = evaluate(0, len(active))
	} else if err := w.workers.ForEach(context.Background(), len(active), evaluate); err != nil {
		w.log().Warn("dynamics: parallel narrow phase failed, retrying serially", "err", err)
		_ = evaluate(0, len(active))
	}

	// Events run on this goroutine in contact order.
	for _, c := range active {
		if c.destroyed {
			continue
		}
		if c.touching != c.wasTouching {
			c.fixtureA.body.SetAwake(true)
			c.fixtureB.body.SetAwake(true)
		}
		switch {
		case c.touching && !c.wasTouching:
			w.fireBeginContact(c)
		case !c.touching && c.wasTouching:
			w.fireEndContact(c)
		}
		if c.touching && !c.IsSensor() {
			w.firePreSolve(c, &c.oldManifold)
		}
	}
}

// solve integrates velocities, solves contacts, integrates positions and
// updates sleep state for all awake islands.
func (w *World) solve(h float64) {
	var nodes []*Body
	w.bodies.Each(func(_ arena.Handle, b *Body) bool {
		b.solverIndex = -1
		if b.typ != StaticBody {
			nodes = append(nodes, b)
		}
		return true
	})

	// Sleeping contacts link too, so touching a sleeping stack wakes all of
	// it in one step.
	w.islands.reset(nodes)
	w.contacts.Each(func(_ arena.Handle, c *Contact) bool {
		if !c.touching || !c.enabled || c.IsSensor() {
			return true
		}
		bA, bB := c.fixtureA.body, c.fixtureB.body
		if bA.typ != StaticBody && bB.typ != StaticBody {
			w.islands.link(bA, bB)
		}
		return true
	})
	awakeIslands := propagateWake(w.islands.groups())

	// Solver bodies: every awake body, then the static or sleeping bodies
	// they touch.
	var solverBodies []*Body
	for _, g := range awakeIslands {
		for _, b := range g {
			b.solverIndex = len(solverBodies)
			solverBodies = append(solverBodies, b)
		}
	}
	var contacts []*Contact
	for _, c := range w.active {
		if c.destroyed || !c.touching || !c.enabled || c.IsSensor() {
			continue
		}
		bA, bB := c.fixtureA.body, c.fixtureB.body
		if bA.solverIndex < 0 && bB.solverIndex < 0 {
			continue
		}
		for _, b := range [2]*Body{bA, bB} {
			if b.solverIndex < 0 {
				b.solverIndex = len(solverBodies)
				solverBodies = append(solverBodies, b)
			}
		}
		contacts = append(contacts, c)
	}

	s := &w.solver
	s.reset(len(solverBodies), w.opts.warmStarting)

	// Integrate velocities and apply damping.
	for i, b := range solverBodies {
		sb := &s.bodies[i]
		b.sweep.C0 = b.sweep.C
		b.sweep.A0 = b.sweep.A
		sb.c, sb.a = b.sweep.C, b.sweep.A
		sb.v, sb.w = b.linearVelocity, b.angularVelocity

		if b.typ == DynamicBody && b.awake {
			sb.v = sb.v.Add(w.gravity.Mul(b.gravityScale).Add(b.force.Mul(b.invMass)).Mul(h))
			sb.w += h * b.invI * b.torque
			// Padé approximation of exp(-c*h).
			sb.v = sb.v.Mul(1 / (1 + h*b.linearDamping))
			sb.w *= 1 / (1 + h*b.angularDamping)
		}
		if !b.awake {
			sb.v, sb.w = mgl64.Vec2{}, 0
		}
		if !geom.IsFinite(sb.v) || !finite(sb.w) {
			w.log().Warn("dynamics: non-finite body velocity reset", "body", b.id.String())
			sb.v, sb.w = mgl64.Vec2{}, 0
		}
	}

	for _, c := range contacts {
		if !s.addContact(c) {
			s.skipped++
			w.log().Debug("dynamics: skipped degenerate contact", "contact", c.id.String())
		}
	}
	w.stats.SkippedContacts = s.skipped

	if s.warmStarting {
		s.warmStart()
	}
	for i := 0; i < w.opts.velocityIterations; i++ {
		s.solveVelocityConstraints()
	}
	s.storeImpulses()

	s.integratePositions(h)

	positionSolved := w.opts.positionIterations == 0
	for i := 0; i < w.opts.positionIterations; i++ {
		if s.solvePositionConstraints() {
			positionSolved = true
			break
		}
	}

	for i, b := range solverBodies {
		if b.typ == StaticBody || !b.awake {
			continue
		}
		sb := &s.bodies[i]
		b.sweep.C, b.sweep.A = sb.c, sb.a
		b.linearVelocity, b.angularVelocity = sb.v, sb.w
		b.synchronizeTransform()
	}

	if w.opts.sleeping {
		for _, g := range awakeIslands {
			updateSleep(g, h, positionSolved)
		}
	}

	for _, b := range solverBodies {
		if b.typ != StaticBody {
			b.synchronizeFixtures()
		}
		b.force = mgl64.Vec2{}
		b.torque = 0
	}
}

// postSolve reports solver impulses in contact order.
func (w *World) postSolve() {
	s := &w.solver
	for i := range s.velocity {
		c := s.velocity[i].contact
		if c.destroyed {
			continue
		}
		impulse := s.impulse(i)
		w.firePostSolve(c, &impulse)
	}
}

// QueryAABB calls fn for every fixture whose bounds overlap aabb until fn
// returns false.
func (w *World) QueryAABB(aabb geom.AABB, fn func(f *Fixture) bool) {
	w.grid.Query(aabb, func(id broadphase.ProxyID) bool {
		f, _ := w.grid.UserData(id).(*Fixture)
		if f == nil || f.IsDestroyed() || !f.aabb.Overlaps(aabb) {
			return true
		}
		return fn(f)
	})
}

// QueryPoint calls fn for every fixture containing p until fn returns
// false.
func (w *World) QueryPoint(p mgl64.Vec2, fn func(f *Fixture) bool) {
	const d = 1e-3
	aabb := geom.NewAABB(mgl64.Vec2{p[0] - d, p[1] - d}, mgl64.Vec2{p[0] + d, p[1] + d})
	w.QueryAABB(aabb, func(f *Fixture) bool {
		if f.TestPoint(p) {
			return fn(f)
		}
		return true
	})
}

// RayCastFunc receives each fixture hit by a ray with the hit point,
// surface normal and fraction along the ray. Its return value controls the
// cast:
//
//	-1        ignore this fixture and continue
//	 0        terminate the cast
//	fraction  clip the ray to this point
//	 1        continue without clipping
type RayCastFunc func(f *Fixture, point, normal mgl64.Vec2, fraction float64) float64

// RayCast casts a ray from p1 to p2. Fixtures are reported nearest bounding
// box first, which is not necessarily nearest hit first.
func (w *World) RayCast(p1, p2 mgl64.Vec2, fn RayCastFunc) {
	if !geom.IsFinite(p1) || !geom.IsFinite(p2) {
		return
	}
	in := geom.RayInput{P1: p1, P2: p2, MaxFraction: 1}
	w.grid.RayCast(in, func(sub geom.RayInput, id broadphase.ProxyID) float64 {
		f, _ := w.grid.UserData(id).(*Fixture)
		if f == nil || f.IsDestroyed() {
			return -1
		}
		out, ok := f.RayCast(sub)
		if !ok {
			return -1
		}
		point := p1.Add(p2.Sub(p1).Mul(out.Fraction))
		return fn(f, point, out.Normal, out.Fraction)
	})
}

// RayHit is the result of RayCastClosest.
type RayHit struct {
	Fixture  *Fixture
	Point    mgl64.Vec2
	Normal   mgl64.Vec2
	Fraction float64
}

// RayCastClosest returns the nearest fixture hit by the ray from p1 to p2.
func (w *World) RayCastClosest(p1, p2 mgl64.Vec2) (RayHit, bool) {
	var hit RayHit
	found := false
	w.RayCast(p1, p2, func(f *Fixture, point, normal mgl64.Vec2, fraction float64) float64 {
		hit = RayHit{Fixture: f, Point: point, Normal: normal, Fraction: fraction}
		found = true
		return fraction
	})
	return hit, found
}
