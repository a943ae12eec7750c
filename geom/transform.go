package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Rot is a rotation stored as sine and cosine.
type Rot struct {
	S, C float64
}

// NewRot returns the rotation for angle radians.
func NewRot(angle float64) Rot {
	return Rot{S: math.Sin(angle), C: math.Cos(angle)}
}

// IdentityRot is the zero rotation.
func IdentityRot() Rot { return Rot{S: 0, C: 1} }

// Angle returns the rotation angle in (-π, π].
func (q Rot) Angle() float64 { return math.Atan2(q.S, q.C) }

// Mat2 returns q as a column-major mgl64 matrix.
func (q Rot) Mat2() mgl64.Mat2 {
	return mgl64.Mat2{q.C, q.S, -q.S, q.C}
}

// RotFromMat2 extracts the rotation of a pure rotation matrix such as one
// built by mgl64.Rotate2D.
func RotFromMat2(m mgl64.Mat2) Rot {
	return Rot{S: m[1], C: m[0]}
}

// MulVec rotates v by q.
func (q Rot) MulVec(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{q.C*v[0] - q.S*v[1], q.S*v[0] + q.C*v[1]}
}

// MulTVec rotates v by the inverse of q.
func (q Rot) MulTVec(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{q.C*v[0] + q.S*v[1], -q.S*v[0] + q.C*v[1]}
}

// Mul composes two rotations (q then r applied to a vector is q.Mul(r)).
func (q Rot) Mul(r Rot) Rot {
	return Rot{S: q.S*r.C + q.C*r.S, C: q.C*r.C - q.S*r.S}
}

// MulT returns q⁻¹·r.
func (q Rot) MulT(r Rot) Rot {
	return Rot{S: q.C*r.S - q.S*r.C, C: q.C*r.C + q.S*r.S}
}

// Transform is a rigid transform: rotation Q followed by translation P.
type Transform struct {
	P mgl64.Vec2
	Q Rot
}

// NewTransform returns the transform for position p and angle radians.
func NewTransform(p mgl64.Vec2, angle float64) Transform {
	return Transform{P: p, Q: NewRot(angle)}
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Q: IdentityRot()}
}

// Apply maps a local point into the transform's parent frame.
func (t Transform) Apply(v mgl64.Vec2) mgl64.Vec2 {
	return t.Q.MulVec(v).Add(t.P)
}

// ApplyInv maps a parent-frame point into local coordinates.
func (t Transform) ApplyInv(v mgl64.Vec2) mgl64.Vec2 {
	return t.Q.MulTVec(v.Sub(t.P))
}

// Mul composes two transforms: t.Mul(u).Apply(v) == t.Apply(u.Apply(v)).
func (t Transform) Mul(u Transform) Transform {
	return Transform{P: t.Q.MulVec(u.P).Add(t.P), Q: t.Q.Mul(u.Q)}
}

// MulT returns t⁻¹·u.
func (t Transform) MulT(u Transform) Transform {
	return Transform{P: t.Q.MulTVec(u.P.Sub(t.P)), Q: t.Q.MulT(u.Q)}
}

// Sweep describes the motion of a body's center of mass over a step.
type Sweep struct {
	LocalCenter mgl64.Vec2 // center of mass in body coordinates
	C0, C       mgl64.Vec2 // world center at step start and now
	A0, A       float64    // angle at step start and now
}

// Transform returns the body transform for the current state of the sweep.
func (s Sweep) Transform() Transform {
	q := NewRot(s.A)
	return Transform{P: s.C.Sub(q.MulVec(s.LocalCenter)), Q: q}
}
