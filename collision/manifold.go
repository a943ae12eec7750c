// Package collision computes contact manifolds between pairs of shapes.
//
// Manifolds are stored in local coordinates so they stay valid while the
// solver moves bodies during position correction; WorldManifold turns one
// into world-space points, a shared normal and per-point separations.
package collision

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/shape"
)

// MaxManifoldPoints is the most contact points a 2D manifold can carry.
const MaxManifoldPoints = 2

type FeatureType uint8

const (
	FeatureVertex FeatureType = iota
	FeatureFace
)

// ContactFeature identifies the pair of features that produced a contact
// point. It is used to match points across steps for warm starting.
type ContactFeature struct {
	IndexA, IndexB uint8
	TypeA, TypeB   FeatureType
}

// Key packs the feature into a comparable integer.
func (f ContactFeature) Key() uint32 {
	return uint32(f.IndexA) | uint32(f.IndexB)<<8 | uint32(f.TypeA)<<16 | uint32(f.TypeB)<<24
}

type ManifoldType uint8

const (
	ManifoldCircles ManifoldType = iota
	ManifoldFaceA
	ManifoldFaceB
)

func (t ManifoldType) String() string {
	switch t {
	case ManifoldCircles:
		return "circles"
	case ManifoldFaceA:
		return "faceA"
	case ManifoldFaceB:
		return "faceB"
	}
	return "unknown"
}

// ManifoldPoint is one contact point.
//
// LocalPoint depends on Type:
//   - Circles: local center of circle B
//   - FaceA: local center of circle B or clip point of polygon B
//   - FaceB: clip point of polygon A
//
// The impulses are the solver's accumulated values and carry over to the
// next step when the feature ID persists.
type ManifoldPoint struct {
	LocalPoint     mgl64.Vec2
	NormalImpulse  float64
	TangentImpulse float64
	ID             ContactFeature
}

// Manifold describes the touching region of two shapes.
type Manifold struct {
	Points      [MaxManifoldPoints]ManifoldPoint
	LocalNormal mgl64.Vec2 // not used for Circles
	LocalPoint  mgl64.Vec2 // meaning depends on Type
	Type        ManifoldType
	PointCount  int
}

// MaxNormalImpulse returns the largest accumulated normal impulse.
func (m *Manifold) MaxNormalImpulse() float64 {
	best := 0.0
	for i := 0; i < m.PointCount; i++ {
		best = max(best, m.Points[i].NormalImpulse)
	}
	return best
}

// WorldManifold is a manifold evaluated at the current transforms.
// Separations are negative when the shapes overlap; Normal points from
// shape A to shape B.
type WorldManifold struct {
	Normal      mgl64.Vec2
	Points      [MaxManifoldPoints]mgl64.Vec2
	Separations [MaxManifoldPoints]float64
}

// Initialize evaluates m for shapes with skin radii radiusA and radiusB at
// the given transforms.
func (wm *WorldManifold) Initialize(m *Manifold, xfA geom.Transform, radiusA float64, xfB geom.Transform, radiusB float64) {
	if m.PointCount == 0 {
		return
	}

	switch m.Type {
	case ManifoldCircles:
		wm.Normal = mgl64.Vec2{1, 0}
		pointA := xfA.Apply(m.LocalPoint)
		pointB := xfB.Apply(m.Points[0].LocalPoint)
		if geom.DistanceSq(pointA, pointB) > geom.Epsilon*geom.Epsilon {
			wm.Normal, _ = geom.Normalize(pointB.Sub(pointA))
		}
		cA := pointA.Add(wm.Normal.Mul(radiusA))
		cB := pointB.Sub(wm.Normal.Mul(radiusB))
		wm.Points[0] = cA.Add(cB).Mul(0.5)
		wm.Separations[0] = cB.Sub(cA).Dot(wm.Normal)

	case ManifoldFaceA:
		wm.Normal = xfA.Q.MulVec(m.LocalNormal)
		planePoint := xfA.Apply(m.LocalPoint)
		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfB.Apply(m.Points[i].LocalPoint)
			cA := clipPoint.Add(wm.Normal.Mul(radiusA - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cB := clipPoint.Sub(wm.Normal.Mul(radiusB))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cB.Sub(cA).Dot(wm.Normal)
		}

	case ManifoldFaceB:
		wm.Normal = xfB.Q.MulVec(m.LocalNormal)
		planePoint := xfB.Apply(m.LocalPoint)
		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfA.Apply(m.Points[i].LocalPoint)
			cB := clipPoint.Add(wm.Normal.Mul(radiusB - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cA := clipPoint.Sub(wm.Normal.Mul(radiusA))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cA.Sub(cB).Dot(wm.Normal)
		}
		// Normal always points from A to B.
		wm.Normal = wm.Normal.Mul(-1)
	}
}

// NeedsSwap reports whether a pair must be reordered before Collide, which
// expects polygon–circle rather than circle–polygon.
func NeedsSwap(a, b shape.Kind) bool {
	return a == shape.KindCircle && b == shape.KindPolygon
}

// Collide fills m for shapes a and b. The pair must not need a swap.
func Collide(m *Manifold, a *shape.Shape, xfA geom.Transform, b *shape.Shape, xfB geom.Transform) {
	switch {
	case a.Kind == shape.KindCircle && b.Kind == shape.KindCircle:
		CollideCircles(m, a, xfA, b, xfB)
	case a.Kind == shape.KindPolygon && b.Kind == shape.KindCircle:
		CollidePolygonAndCircle(m, a, xfA, b, xfB)
	case a.Kind == shape.KindPolygon && b.Kind == shape.KindPolygon:
		CollidePolygons(m, a, xfA, b, xfB)
	default:
		m.PointCount = 0
	}
}

// TestOverlap reports whether two shapes overlap at the given transforms.
func TestOverlap(a *shape.Shape, xfA geom.Transform, b *shape.Shape, xfB geom.Transform) bool {
	if NeedsSwap(a.Kind, b.Kind) {
		a, b = b, a
		xfA, xfB = xfB, xfA
	}
	var m Manifold
	Collide(&m, a, xfA, b, xfB)
	if m.PointCount == 0 {
		return false
	}
	var wm WorldManifold
	wm.Initialize(&m, xfA, a.Radius, xfB, b.Radius)
	for i := 0; i < m.PointCount; i++ {
		if wm.Separations[i] < 0 {
			return true
		}
	}
	return false
}
