package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl64.Vec2
}

func NewAABB(min, max mgl64.Vec2) AABB {
	return AABB{Min: min, Max: max}
}

// IsValid reports whether Min ≤ Max component-wise and all bounds are finite.
func (aabb AABB) IsValid() bool {
	return aabb.Min[0] <= aabb.Max[0] && aabb.Min[1] <= aabb.Max[1] &&
		IsFinite(aabb.Min) && IsFinite(aabb.Max)
}

func (aabb AABB) Overlaps(other AABB) bool {
	return aabb.Min[0] <= other.Max[0] && aabb.Max[0] >= other.Min[0] &&
		aabb.Min[1] <= other.Max[1] && aabb.Max[1] >= other.Min[1]
}

func (aabb AABB) Contains(point mgl64.Vec2) bool {
	return point[0] >= aabb.Min[0] && point[0] <= aabb.Max[0] &&
		point[1] >= aabb.Min[1] && point[1] <= aabb.Max[1]
}

// ContainsAABB reports whether other lies entirely inside aabb.
func (aabb AABB) ContainsAABB(other AABB) bool {
	return aabb.Min[0] <= other.Min[0] && aabb.Min[1] <= other.Min[1] &&
		other.Max[0] <= aabb.Max[0] && other.Max[1] <= aabb.Max[1]
}

func (aabb AABB) Area() float64 {
	width := aabb.Max[0] - aabb.Min[0]
	height := aabb.Max[1] - aabb.Min[1]
	return width * height
}

func (aabb AABB) Perimeter() float64 {
	return 2 * ((aabb.Max[0] - aabb.Min[0]) + (aabb.Max[1] - aabb.Min[1]))
}

func (aabb AABB) Center() mgl64.Vec2 {
	return mgl64.Vec2{
		(aabb.Min[0] + aabb.Max[0]) * 0.5,
		(aabb.Min[1] + aabb.Max[1]) * 0.5,
	}
}

// Extents returns the half-widths of the box.
func (aabb AABB) Extents() mgl64.Vec2 {
	return mgl64.Vec2{
		(aabb.Max[0] - aabb.Min[0]) * 0.5,
		(aabb.Max[1] - aabb.Min[1]) * 0.5,
	}
}

func (aabb AABB) Expand(margin float64) AABB {
	return AABB{
		Min: mgl64.Vec2{aabb.Min[0] - margin, aabb.Min[1] - margin},
		Max: mgl64.Vec2{aabb.Max[0] + margin, aabb.Max[1] + margin},
	}
}

// Union returns the smallest box containing both boxes.
func (aabb AABB) Union(other AABB) AABB {
	return AABB{Min: MinVec(aabb.Min, other.Min), Max: MaxVec(aabb.Max, other.Max)}
}

// RayInput is a ray from P1 towards P2, clipped at MaxFraction of the segment.
type RayInput struct {
	P1, P2      mgl64.Vec2
	MaxFraction float64
}

// RayOutput is a ray hit: surface normal and fraction along P1→P2.
type RayOutput struct {
	Normal   mgl64.Vec2
	Fraction float64
}

// RayCast intersects the ray with the box using the slab method. A ray that
// starts inside the box does not hit it.
func (aabb AABB) RayCast(in RayInput) (RayOutput, bool) {
	tmin := -math.MaxFloat64
	tmax := math.MaxFloat64

	p := in.P1
	d := in.P2.Sub(in.P1)
	absD := AbsVec(d)

	var normal mgl64.Vec2
	for i := 0; i < 2; i++ {
		if absD[i] < Epsilon {
			// Parallel to this slab.
			if p[i] < aabb.Min[i] || aabb.Max[i] < p[i] {
				return RayOutput{}, false
			}
			continue
		}
		inv := 1.0 / d[i]
		t1 := (aabb.Min[i] - p[i]) * inv
		t2 := (aabb.Max[i] - p[i]) * inv

		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}
		if t1 > tmin {
			normal = mgl64.Vec2{}
			normal[i] = s
			tmin = t1
		}
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return RayOutput{}, false
		}
	}

	if tmin < 0 || in.MaxFraction < tmin {
		return RayOutput{}, false
	}
	return RayOutput{Normal: normal, Fraction: tmin}, true
}
