// Package shape defines the collision geometry of fixtures: circles and
// convex polygons, with their mass properties and point/ray queries.
//
// Shape is a closed variant: Kind selects which fields are meaningful.
// Shapes are immutable once built; use Clone to obtain an independent copy.
package shape

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jinzhu/copier"

	"github.com/0x5844/rigid2d/geom"
)

// ErrInvalidGeometry is returned for degenerate or malformed shapes.
var ErrInvalidGeometry = errors.New("shape: invalid geometry")

const (
	// MaxPolygonVertices bounds the vertex count of a polygon.
	MaxPolygonVertices = 16

	// PolygonRadius is the collision skin around polygons. It keeps
	// resting contacts from jittering in and out of touch.
	PolygonRadius = 2 * LinearSlop

	// LinearSlop is the penetration the solver tolerates before pushing
	// bodies apart.
	LinearSlop = 0.005
)

type Kind uint8

const (
	KindCircle Kind = iota
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindPolygon:
		return "polygon"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Shape is a circle or convex polygon in body-local coordinates.
type Shape struct {
	Kind Kind

	// Radius is the circle radius, or the skin radius of a polygon.
	Radius float64

	// Center is the circle's local center.
	Center mgl64.Vec2

	// Vertices are counter-clockwise; Normals[i] is the outward normal of
	// the edge Vertices[i] → Vertices[i+1].
	Vertices []mgl64.Vec2
	Normals  []mgl64.Vec2
	Centroid mgl64.Vec2
}

// MassData holds the mass properties of a shape. I is the rotational
// inertia about the shape's local origin.
type MassData struct {
	Mass   float64
	Center mgl64.Vec2
	I      float64
}

// NewCircle returns a circle of the given radius centered at center.
func NewCircle(radius float64, center mgl64.Vec2) (*Shape, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: circle radius %v must be positive and finite", ErrInvalidGeometry, radius)
	}
	if !geom.IsFinite(center) {
		return nil, fmt.Errorf("%w: circle center %v is not finite", ErrInvalidGeometry, center)
	}
	return &Shape{Kind: KindCircle, Radius: radius, Center: center}, nil
}

// NewPolygon builds a convex polygon from vertices in either winding
// order. Fewer than three or more than MaxPolygonVertices points, repeated
// or collinear consecutive points, concave input and zero area all fail
// with ErrInvalidGeometry.
func NewPolygon(vertices []mgl64.Vec2) (*Shape, error) {
	n := len(vertices)
	if n < 3 {
		return nil, fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidGeometry, n)
	}
	if n > MaxPolygonVertices {
		return nil, fmt.Errorf("%w: polygon has %d vertices, max %d", ErrInvalidGeometry, n, MaxPolygonVertices)
	}

	verts := make([]mgl64.Vec2, n)
	copy(verts, vertices)
	for i, v := range verts {
		if !geom.IsFinite(v) {
			return nil, fmt.Errorf("%w: vertex %d %v is not finite", ErrInvalidGeometry, i, v)
		}
	}

	area := signedArea(verts)
	if math.Abs(area) < geom.Epsilon {
		return nil, fmt.Errorf("%w: polygon has zero area", ErrInvalidGeometry)
	}
	if area < 0 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			verts[i], verts[j] = verts[j], verts[i]
		}
	}

	normals := make([]mgl64.Vec2, n)
	for i := 0; i < n; i++ {
		edge := verts[(i+1)%n].Sub(verts[i])
		if geom.LenSq(edge) < LinearSlop*LinearSlop*0.25 {
			return nil, fmt.Errorf("%w: edge %d is degenerate", ErrInvalidGeometry, i)
		}
		nrm, _ := geom.Normalize(geom.CrossVS(edge, 1))
		normals[i] = nrm
	}

	// Every turn must be strictly left for a convex counter-clockwise polygon.
	for i := 0; i < n; i++ {
		e1 := verts[(i+1)%n].Sub(verts[i])
		e2 := verts[(i+2)%n].Sub(verts[(i+1)%n])
		c := geom.Cross(e1, e2)
		if c <= geom.Epsilon*math.Max(1, e1.Len()*e2.Len()) {
			if math.Abs(c) <= geom.Epsilon*math.Max(1, e1.Len()*e2.Len()) {
				return nil, fmt.Errorf("%w: vertices %d-%d are collinear", ErrInvalidGeometry, i, (i+2)%n)
			}
			return nil, fmt.Errorf("%w: polygon is not convex at vertex %d", ErrInvalidGeometry, (i+1)%n)
		}
	}

	return &Shape{
		Kind:     KindPolygon,
		Radius:   PolygonRadius,
		Vertices: verts,
		Normals:  normals,
		Centroid: polygonCentroid(verts),
	}, nil
}

// NewBox returns an axis-aligned box with half-widths hx, hy centered on
// the local origin.
func NewBox(hx, hy float64) (*Shape, error) {
	return NewOrientedBox(hx, hy, mgl64.Vec2{}, 0)
}

// NewOrientedBox returns a box with half-widths hx, hy, centered at center
// and rotated by angle radians.
func NewOrientedBox(hx, hy float64, center mgl64.Vec2, angle float64) (*Shape, error) {
	if !(hx > 0) || !(hy > 0) {
		return nil, fmt.Errorf("%w: box half-widths %v, %v must be positive", ErrInvalidGeometry, hx, hy)
	}
	xf := geom.NewTransform(center, angle)
	verts := []mgl64.Vec2{
		xf.Apply(mgl64.Vec2{-hx, -hy}),
		xf.Apply(mgl64.Vec2{hx, -hy}),
		xf.Apply(mgl64.Vec2{hx, hy}),
		xf.Apply(mgl64.Vec2{-hx, hy}),
	}
	return NewPolygon(verts)
}

func signedArea(verts []mgl64.Vec2) float64 {
	area := 0.0
	n := len(verts)
	for i := 0; i < n; i++ {
		area += geom.Cross(verts[i], verts[(i+1)%n])
	}
	return 0.5 * area
}

func polygonCentroid(verts []mgl64.Vec2) mgl64.Vec2 {
	var c mgl64.Vec2
	area := 0.0
	ref := verts[0]
	const inv3 = 1.0 / 3.0
	for i := 1; i < len(verts)-1; i++ {
		e1 := verts[i].Sub(ref)
		e2 := verts[i+1].Sub(ref)
		a := 0.5 * geom.Cross(e1, e2)
		area += a
		c = c.Add(e1.Add(e2).Mul(a * inv3))
	}
	return c.Mul(1.0 / area).Add(ref)
}

// ComputeMass returns the mass properties of the shape at the given
// density (kg/m²).
func (s *Shape) ComputeMass(density float64) MassData {
	switch s.Kind {
	case KindCircle:
		rr := s.Radius * s.Radius
		mass := density * math.Pi * rr
		return MassData{
			Mass:   mass,
			Center: s.Center,
			I:      mass * (0.5*rr + s.Center.Dot(s.Center)),
		}
	default:
		return s.polygonMass(density)
	}
}

// polygonMass integrates over the triangle fan rooted at the first vertex
// (reduces round-off versus the origin), then shifts the inertia to the
// local origin.
func (s *Shape) polygonMass(density float64) MassData {
	var center mgl64.Vec2
	area := 0.0
	I := 0.0
	ref := s.Vertices[0]
	const inv3 = 1.0 / 3.0

	for i := 1; i < len(s.Vertices)-1; i++ {
		e1 := s.Vertices[i].Sub(ref)
		e2 := s.Vertices[i+1].Sub(ref)
		d := geom.Cross(e1, e2)

		triArea := 0.5 * d
		area += triArea
		center = center.Add(e1.Add(e2).Mul(triArea * inv3))

		intx2 := e1[0]*e1[0] + e2[0]*e1[0] + e2[0]*e2[0]
		inty2 := e1[1]*e1[1] + e2[1]*e1[1] + e2[1]*e2[1]
		I += (0.25 * inv3 * d) * (intx2 + inty2)
	}

	mass := density * area
	center = center.Mul(1.0 / area)
	c := center.Add(ref)

	// I about ref → about centroid → about origin.
	inertia := density*I + mass*(c.Dot(c)-center.Dot(center))
	return MassData{Mass: mass, Center: c, I: inertia}
}

// Area returns the area of the shape.
func (s *Shape) Area() float64 {
	if s.Kind == KindCircle {
		return math.Pi * s.Radius * s.Radius
	}
	return signedArea(s.Vertices)
}

// ComputeAABB returns the bounds of the shape under xf. Polygon bounds
// include the skin radius.
func (s *Shape) ComputeAABB(xf geom.Transform) geom.AABB {
	if s.Kind == KindCircle {
		p := xf.Apply(s.Center)
		r := mgl64.Vec2{s.Radius, s.Radius}
		return geom.AABB{Min: p.Sub(r), Max: p.Add(r)}
	}
	lower := xf.Apply(s.Vertices[0])
	upper := lower
	for _, v := range s.Vertices[1:] {
		p := xf.Apply(v)
		lower = geom.MinVec(lower, p)
		upper = geom.MaxVec(upper, p)
	}
	r := mgl64.Vec2{s.Radius, s.Radius}
	return geom.AABB{Min: lower.Sub(r), Max: upper.Add(r)}
}

// TestPoint reports whether the world point p lies inside the shape placed
// at xf. Polygon skin is not included.
func (s *Shape) TestPoint(xf geom.Transform, p mgl64.Vec2) bool {
	if s.Kind == KindCircle {
		return geom.DistanceSq(xf.Apply(s.Center), p) <= s.Radius*s.Radius
	}
	local := xf.ApplyInv(p)
	for i, n := range s.Normals {
		if n.Dot(local.Sub(s.Vertices[i])) > 0 {
			return false
		}
	}
	return true
}

// RayCast intersects a world-space ray with the shape placed at xf.
func (s *Shape) RayCast(in geom.RayInput, xf geom.Transform) (geom.RayOutput, bool) {
	if s.Kind == KindCircle {
		return s.rayCastCircle(in, xf)
	}
	return s.rayCastPolygon(in, xf)
}

func (s *Shape) rayCastCircle(in geom.RayInput, xf geom.Transform) (geom.RayOutput, bool) {
	position := xf.Apply(s.Center)
	d := in.P1.Sub(position)
	b := d.Dot(d) - s.Radius*s.Radius

	r := in.P2.Sub(in.P1)
	c := d.Dot(r)
	rr := r.Dot(r)
	sigma := c*c - rr*b

	if sigma < 0 || rr < geom.Epsilon {
		return geom.RayOutput{}, false
	}

	a := -(c + math.Sqrt(sigma))
	if 0 <= a && a <= in.MaxFraction*rr {
		a /= rr
		n, _ := geom.Normalize(d.Add(r.Mul(a)))
		return geom.RayOutput{Normal: n, Fraction: a}, true
	}
	return geom.RayOutput{}, false
}

func (s *Shape) rayCastPolygon(in geom.RayInput, xf geom.Transform) (geom.RayOutput, bool) {
	p1 := xf.Q.MulTVec(in.P1.Sub(xf.P))
	p2 := xf.Q.MulTVec(in.P2.Sub(xf.P))
	d := p2.Sub(p1)

	lower, upper := 0.0, in.MaxFraction
	index := -1

	for i, n := range s.Normals {
		numerator := n.Dot(s.Vertices[i].Sub(p1))
		denominator := n.Dot(d)

		if denominator == 0 {
			if numerator < 0 {
				return geom.RayOutput{}, false
			}
			continue
		}

		if denominator < 0 && numerator < lower*denominator {
			lower = numerator / denominator
			index = i
		} else if denominator > 0 && numerator < upper*denominator {
			upper = numerator / denominator
		}

		if upper < lower {
			return geom.RayOutput{}, false
		}
	}

	if index < 0 {
		return geom.RayOutput{}, false
	}
	return geom.RayOutput{Normal: xf.Q.MulVec(s.Normals[index]), Fraction: lower}, true
}

// Clone returns a deep copy sharing no memory with s.
func (s *Shape) Clone() *Shape {
	out := new(Shape)
	if err := copier.CopyWithOption(out, s, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on mismatched types, which cannot happen for
		// a same-type copy; fall back to a manual copy regardless.
		*out = *s
		out.Vertices = append([]mgl64.Vec2(nil), s.Vertices...)
		out.Normals = append([]mgl64.Vec2(nil), s.Normals...)
	}
	return out
}

// Equal reports whether s and o describe the same geometry, vertex for
// vertex, within eps.
func (s *Shape) Equal(o *Shape, eps float64) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Kind != o.Kind || math.Abs(s.Radius-o.Radius) > eps {
		return false
	}
	if s.Kind == KindCircle {
		return geom.ApproxEqual(s.Center, o.Center, eps)
	}
	if len(s.Vertices) != len(o.Vertices) {
		return false
	}
	for i := range s.Vertices {
		if !geom.ApproxEqual(s.Vertices[i], o.Vertices[i], eps) {
			return false
		}
	}
	return true
}

// Validate re-checks a shape built or modified outside the constructors.
func (s *Shape) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil shape", ErrInvalidGeometry)
	}
	switch s.Kind {
	case KindCircle:
		_, err := NewCircle(s.Radius, s.Center)
		return err
	case KindPolygon:
		p, err := NewPolygon(s.Vertices)
		if err != nil {
			return err
		}
		if !p.Equal(s, 1e-9) {
			return fmt.Errorf("%w: polygon winding or normals are inconsistent", ErrInvalidGeometry)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrInvalidGeometry, s.Kind)
	}
}
