// Package geom holds the 2D math shared by the engine: vector helpers on
// mgl64.Vec2, rotations, rigid transforms, axis-aligned boxes and rays.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used for degenerate-length checks.
const Epsilon = 1e-12

// Cross returns the 2D cross product (z component) of a and b.
func Cross(a, b mgl64.Vec2) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

// CrossVS returns v × s (a vector perpendicular to v, scaled by s).
func CrossVS(v mgl64.Vec2, s float64) mgl64.Vec2 {
	return mgl64.Vec2{s * v[1], -s * v[0]}
}

// CrossSV returns s × v.
func CrossSV(s float64, v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{-s * v[1], s * v[0]}
}

// Perp returns v rotated by +90 degrees.
func Perp(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{-v[1], v[0]}
}

// LenSq returns the squared length of v.
func LenSq(v mgl64.Vec2) float64 {
	return v.Dot(v)
}

// DistanceSq returns the squared distance between a and b.
func DistanceSq(a, b mgl64.Vec2) float64 {
	return LenSq(b.Sub(a))
}

// Normalize returns v scaled to unit length and its original length. A
// vector shorter than Epsilon is returned unchanged with length 0.
func Normalize(v mgl64.Vec2) (mgl64.Vec2, float64) {
	l := v.Len()
	if l < Epsilon {
		return v, 0
	}
	inv := 1.0 / l
	return mgl64.Vec2{v[0] * inv, v[1] * inv}, l
}

// IsFinite reports whether both components are finite numbers.
func IsFinite(v mgl64.Vec2) bool {
	return isFinite(v[0]) && isFinite(v[1])
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsFiniteScalar reports whether f is neither NaN nor infinite.
func IsFiniteScalar(f float64) bool { return isFinite(f) }

// MinVec returns the component-wise minimum.
func MinVec(a, b mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{math.Min(a[0], b[0]), math.Min(a[1], b[1])}
}

// MaxVec returns the component-wise maximum.
func MaxVec(a, b mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{math.Max(a[0], b[0]), math.Max(a[1], b[1])}
}

// AbsVec returns the component-wise absolute value.
func AbsVec(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{math.Abs(v[0]), math.Abs(v[1])}
}

// ApproxEqual reports whether every component of a and b differs by at most
// eps. Unlike mgl64's ApproxEqualThreshold the bound is absolute, so it
// behaves the same near zero and at large coordinates.
func ApproxEqual(a, b mgl64.Vec2, eps float64) bool {
	return math.Abs(a[0]-b[0]) <= eps && math.Abs(a[1]-b[1]) <= eps
}
