package dynamics

import (
	"github.com/0x5844/rigid2d/collision"
)

// Contact is a potential touch between two fixtures on different bodies.
// It exists while the fixtures' fat AABBs overlap, whether or not the
// shapes touch.
type Contact struct {
	id       ID
	fixtureA *Fixture
	fixtureB *Fixture

	manifold    collision.Manifold
	oldManifold collision.Manifold

	friction    float64
	restitution float64

	touching    bool
	wasTouching bool
	enabled     bool
	filterFlag  bool
	destroyed   bool
}

func newContact(fA, fB *Fixture) *Contact {
	return &Contact{
		fixtureA:    fA,
		fixtureB:    fB,
		friction:    MixFriction(fA.friction, fB.friction),
		restitution: MixRestitution(fA.restitution, fB.restitution),
		enabled:     true,
	}
}

// ID returns the contact's identifier. Contacts are processed in ID order.
func (c *Contact) ID() ID { return c.id }

func (c *Contact) FixtureA() *Fixture { return c.fixtureA }
func (c *Contact) FixtureB() *Fixture { return c.fixtureB }

// Manifold returns the contact manifold in local coordinates, including the
// accumulated solver impulses.
func (c *Contact) Manifold() collision.Manifold { return c.manifold }

// WorldManifold evaluates the manifold at the bodies' current poses.
func (c *Contact) WorldManifold() collision.WorldManifold {
	var wm collision.WorldManifold
	fA, fB := c.fixtureA, c.fixtureB
	wm.Initialize(&c.manifold, fA.body.xf, fA.shape.Radius, fB.body.xf, fB.shape.Radius)
	return wm
}

// IsTouching reports whether the shapes touched at the last update.
func (c *Contact) IsTouching() bool { return c.touching }

// IsSensor reports whether either fixture is a sensor.
func (c *Contact) IsSensor() bool { return c.fixtureA.sensor || c.fixtureB.sensor }

// IsEnabled reports whether the contact will be solved this step.
func (c *Contact) IsEnabled() bool { return c.enabled }

// SetEnabled disables the contact for the current step. It is meant to be
// called from a pre-solve callback; contacts are re-enabled every step.
func (c *Contact) SetEnabled(enabled bool) { c.enabled = enabled }

// IsDestroyed reports whether the contact has been removed from the world.
func (c *Contact) IsDestroyed() bool { return c.destroyed }

func (c *Contact) Friction() float64    { return c.friction }
func (c *Contact) Restitution() float64 { return c.restitution }

// SetFriction overrides the mixed friction. The override persists for the
// life of the contact.
func (c *Contact) SetFriction(friction float64) {
	if finite(friction) && friction >= 0 {
		c.friction = friction
	}
}

// ResetFriction restores the mixed friction of the two fixtures.
func (c *Contact) ResetFriction() {
	c.friction = MixFriction(c.fixtureA.friction, c.fixtureB.friction)
}

// SetRestitution overrides the mixed restitution.
func (c *Contact) SetRestitution(restitution float64) {
	if finite(restitution) && restitution >= 0 {
		c.restitution = restitution
	}
}

// ResetRestitution restores the mixed restitution of the two fixtures.
func (c *Contact) ResetRestitution() {
	c.restitution = MixRestitution(c.fixtureA.restitution, c.fixtureB.restitution)
}

// Involves reports whether f is one of the contact's fixtures.
func (c *Contact) Involves(f *Fixture) bool {
	return c.fixtureA == f || c.fixtureB == f
}

// OtherBody returns the body on the other side of the contact from b.
func (c *Contact) OtherBody(b *Body) *Body {
	if c.fixtureA.body == b {
		return c.fixtureB.body
	}
	return c.fixtureA.body
}

func (c *Contact) flagForFiltering() { c.filterFlag = true }

// evaluate recomputes the manifold at the bodies' current poses and
// carries impulses over for points whose features persist. It only
// touches the contact itself so contacts can be evaluated concurrently.
func (c *Contact) evaluate() {
	c.oldManifold = c.manifold
	c.wasTouching = c.touching
	c.enabled = true

	fA, fB := c.fixtureA, c.fixtureB
	xfA, xfB := fA.body.xf, fB.body.xf

	if fA.sensor || fB.sensor {
		c.touching = collision.TestOverlap(fA.shape, xfA, fB.shape, xfB)
		c.manifold.PointCount = 0
		return
	}

	collision.Collide(&c.manifold, fA.shape, xfA, fB.shape, xfB)
	c.touching = c.manifold.PointCount > 0

	for i := 0; i < c.manifold.PointCount; i++ {
		mp := &c.manifold.Points[i]
		mp.NormalImpulse = 0
		mp.TangentImpulse = 0
		key := mp.ID.Key()
		for j := 0; j < c.oldManifold.PointCount; j++ {
			old := &c.oldManifold.Points[j]
			if old.ID.Key() == key {
				mp.NormalImpulse = old.NormalImpulse
				mp.TangentImpulse = old.TangentImpulse
				break
			}
		}
	}
}
