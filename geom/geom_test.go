package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const tol = 1e-9

func TestCross(t *testing.T) {
	if got := Cross(mgl64.Vec2{1, 0}, mgl64.Vec2{0, 1}); got != 1 {
		t.Errorf("Cross(x, y) = %v, want 1", got)
	}
	v := mgl64.Vec2{2, 3}
	// CrossSV and CrossVS are negatives of each other.
	if !CrossSV(2, v).ApproxEqual(CrossVS(v, 2).Mul(-1)) {
		t.Error("CrossSV != -CrossVS")
	}
}

func TestNormalizeZero(t *testing.T) {
	v, l := Normalize(mgl64.Vec2{})
	if l != 0 || v != (mgl64.Vec2{}) {
		t.Errorf("Normalize(0) = %v, %v; want zero, 0", v, l)
	}
	v, l = Normalize(mgl64.Vec2{3, 4})
	if math.Abs(l-5) > tol || math.Abs(v.Len()-1) > tol {
		t.Errorf("Normalize(3,4) = %v, %v", v, l)
	}
}

func TestRotMatchesMathgl(t *testing.T) {
	for _, angle := range []float64{0, 0.3, math.Pi / 2, -2.5} {
		q := NewRot(angle)
		m := mgl64.Rotate2D(angle)
		v := mgl64.Vec2{1.5, -0.25}
		if !ApproxEqual(q.MulVec(v), m.Mul2x1(v), tol) {
			t.Errorf("angle %v: MulVec = %v, mgl64 = %v", angle, q.MulVec(v), m.Mul2x1(v))
		}
		if !ApproxEqual(q.MulTVec(v), m.Transpose().Mul2x1(v), tol) {
			t.Errorf("angle %v: MulTVec mismatch", angle)
		}
		if got := RotFromMat2(m); math.Abs(got.Angle()-q.Angle()) > tol {
			t.Errorf("RotFromMat2 angle = %v, want %v", got.Angle(), q.Angle())
		}
		if qm := q.Mat2(); !ApproxEqual(qm.Col(0), m.Col(0), tol) || !ApproxEqual(qm.Col(1), m.Col(1), tol) {
			t.Errorf("Mat2 mismatch for %v", angle)
		}
	}
}

func TestTransformRoundTrip(t *testing.T) {
	xf := NewTransform(mgl64.Vec2{3, -1}, 0.7)
	p := mgl64.Vec2{0.5, 2}
	if got := xf.ApplyInv(xf.Apply(p)); !ApproxEqual(got, p, tol) {
		t.Errorf("ApplyInv(Apply(p)) = %v, want %v", got, p)
	}

	u := NewTransform(mgl64.Vec2{-1, 4}, -1.1)
	if got, want := xf.Mul(u).Apply(p), xf.Apply(u.Apply(p)); !ApproxEqual(got, want, tol) {
		t.Errorf("Mul: got %v, want %v", got, want)
	}
	if got, want := xf.MulT(u).Apply(p), xf.ApplyInv(u.Apply(p)); !ApproxEqual(got, want, tol) {
		t.Errorf("MulT: got %v, want %v", got, want)
	}
}

func TestSweepTransform(t *testing.T) {
	s := Sweep{LocalCenter: mgl64.Vec2{1, 0}, C: mgl64.Vec2{5, 5}, A: math.Pi / 2}
	xf := s.Transform()
	if got := xf.Apply(s.LocalCenter); !ApproxEqual(got, s.C, tol) {
		t.Errorf("local center maps to %v, want %v", got, s.C)
	}
}

func TestAABB(t *testing.T) {
	a := NewAABB(mgl64.Vec2{0, 0}, mgl64.Vec2{2, 2})
	b := NewAABB(mgl64.Vec2{1, 1}, mgl64.Vec2{3, 3})
	c := NewAABB(mgl64.Vec2{5, 5}, mgl64.Vec2{6, 6})

	if !a.Overlaps(b) || a.Overlaps(c) {
		t.Error("Overlaps wrong")
	}
	if !a.Contains(mgl64.Vec2{1, 1}) || a.Contains(mgl64.Vec2{3, 1}) {
		t.Error("Contains wrong")
	}
	if a.Area() != 4 || a.Perimeter() != 8 {
		t.Errorf("Area/Perimeter = %v/%v", a.Area(), a.Perimeter())
	}
	u := a.Union(c)
	if u.Min != (mgl64.Vec2{0, 0}) || u.Max != (mgl64.Vec2{6, 6}) {
		t.Errorf("Union = %v", u)
	}
	if !u.ContainsAABB(b) || b.ContainsAABB(u) {
		t.Error("ContainsAABB wrong")
	}
	e := a.Expand(1)
	if e.Min != (mgl64.Vec2{-1, -1}) || e.Extents() != (mgl64.Vec2{2, 2}) {
		t.Errorf("Expand = %v", e)
	}
	if (AABB{Min: mgl64.Vec2{1, 0}, Max: mgl64.Vec2{0, 1}}).IsValid() {
		t.Error("inverted box reported valid")
	}
}

func TestAABBRayCast(t *testing.T) {
	box := NewAABB(mgl64.Vec2{-1, -1}, mgl64.Vec2{1, 1})

	tests := []struct {
		name     string
		in       RayInput
		hit      bool
		fraction float64
		normal   mgl64.Vec2
	}{
		{"from left", RayInput{P1: mgl64.Vec2{-3, 0}, P2: mgl64.Vec2{3, 0}, MaxFraction: 1}, true, 2.0 / 6.0, mgl64.Vec2{-1, 0}},
		{"from above", RayInput{P1: mgl64.Vec2{0, 5}, P2: mgl64.Vec2{0, -5}, MaxFraction: 1}, true, 0.4, mgl64.Vec2{0, 1}},
		{"miss", RayInput{P1: mgl64.Vec2{-3, 2}, P2: mgl64.Vec2{3, 2}, MaxFraction: 1}, false, 0, mgl64.Vec2{}},
		{"too short", RayInput{P1: mgl64.Vec2{-3, 0}, P2: mgl64.Vec2{3, 0}, MaxFraction: 0.2}, false, 0, mgl64.Vec2{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := box.RayCast(tt.in)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if !ok {
				return
			}
			if math.Abs(out.Fraction-tt.fraction) > tol {
				t.Errorf("fraction = %v, want %v", out.Fraction, tt.fraction)
			}
			if out.Normal != tt.normal {
				t.Errorf("normal = %v, want %v", out.Normal, tt.normal)
			}
		})
	}
}
