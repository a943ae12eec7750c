// Package rigid2d is a 2D rigid-body physics engine.
//
// # Overview
//
// The engine simulates circles and convex polygons attached to static,
// kinematic and dynamic bodies. A step runs a fixed pipeline:
//
//	broad phase -> narrow phase -> solve -> post-solve events -> removals
//
// The solver is a sequential impulse solver with warm starting, a two point
// block solver and a position correction pass.
//
// # Packages
//
//   - geom: vectors (mgl64.Vec2), rotations, transforms, AABBs, rays
//   - shape: circle and polygon geometry, mass properties
//   - collision: contact manifolds for every shape pair
//   - broadphase: spatial hash of fattened fixture bounds
//   - dynamics: World, Body, Fixture, Contact and the solver
//   - breakable: bodies that shatter into their parts under impact
//   - config, scene: settings and scene files (JSON or YAML)
//   - debugdraw, viewer: PNG snapshots and a websocket snapshot stream
//
// # Quick Start
//
//	w := dynamics.NewWorld(mgl64.Vec2{0, -10})
//	ground, _ := w.CreateBody(dynamics.StaticBody, mgl64.Vec2{0, 0}, 0)
//	box, _ := shape.NewBox(50, 1)
//	ground.CreateFixture(box, nil)
//
//	body, _ := w.CreateBody(dynamics.DynamicBody, mgl64.Vec2{0, 10}, 0)
//	ball, _ := shape.NewCircle(0.5, mgl64.Vec2{})
//	body.CreateFixture(ball, nil, dynamics.WithDensity(1))
//
//	for i := 0; i < 60; i++ {
//		w.Step(1.0 / 60.0)
//	}
//
// # Coordinate System
//
// Units are meters, kilograms and seconds. Y points up and angles are in
// radians, counter-clockwise.
package rigid2d
