package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/shape"
)

// CollideCircles computes the manifold of two circles. They touch iff the
// distance between their centers is less than the sum of their radii.
func CollideCircles(m *Manifold, circleA *shape.Shape, xfA geom.Transform, circleB *shape.Shape, xfB geom.Transform) {
	m.PointCount = 0

	pA := xfA.Apply(circleA.Center)
	pB := xfB.Apply(circleB.Center)

	radius := circleA.Radius + circleB.Radius
	if geom.DistanceSq(pA, pB) >= radius*radius {
		return
	}

	m.Type = ManifoldCircles
	m.LocalPoint = circleA.Center
	m.LocalNormal = mgl64.Vec2{}
	m.PointCount = 1
	m.Points[0].LocalPoint = circleB.Center
	m.Points[0].ID = ContactFeature{}
}

// CollidePolygonAndCircle computes the manifold of polygon A and circle B.
func CollidePolygonAndCircle(m *Manifold, polyA *shape.Shape, xfA geom.Transform, circleB *shape.Shape, xfB geom.Transform) {
	m.PointCount = 0

	// Circle center in the polygon's frame.
	c := xfB.Apply(circleB.Center)
	cLocal := xfA.ApplyInv(c)

	normalIndex := 0
	separation := -math.MaxFloat64
	radius := polyA.Radius + circleB.Radius
	verts := polyA.Vertices
	normals := polyA.Normals

	for i := range verts {
		s := normals[i].Dot(cLocal.Sub(verts[i]))
		if s > radius {
			return
		}
		if s > separation {
			separation = s
			normalIndex = i
		}
	}

	v1 := verts[normalIndex]
	v2 := verts[(normalIndex+1)%len(verts)]

	setPoint := func(normal, point mgl64.Vec2) {
		m.PointCount = 1
		m.Type = ManifoldFaceA
		m.LocalNormal = normal
		m.LocalPoint = point
		m.Points[0].LocalPoint = circleB.Center
		m.Points[0].ID = ContactFeature{}
	}

	// Center inside the polygon.
	if separation < geom.Epsilon {
		setPoint(normals[normalIndex], v1.Add(v2).Mul(0.5))
		return
	}

	u1 := cLocal.Sub(v1).Dot(v2.Sub(v1))
	u2 := cLocal.Sub(v2).Dot(v1.Sub(v2))
	switch {
	case u1 <= 0:
		if geom.DistanceSq(cLocal, v1) > radius*radius {
			return
		}
		n, _ := geom.Normalize(cLocal.Sub(v1))
		setPoint(n, v1)
	case u2 <= 0:
		if geom.DistanceSq(cLocal, v2) > radius*radius {
			return
		}
		n, _ := geom.Normalize(cLocal.Sub(v2))
		setPoint(n, v2)
	default:
		faceCenter := v1.Add(v2).Mul(0.5)
		if cLocal.Sub(faceCenter).Dot(normals[normalIndex]) > radius {
			return
		}
		setPoint(normals[normalIndex], faceCenter)
	}
}

// findMaxSeparation returns the edge of poly1 with the largest separation
// from poly2, and that separation.
func findMaxSeparation(poly1 *shape.Shape, xf1 geom.Transform, poly2 *shape.Shape, xf2 geom.Transform) (int, float64) {
	xf := xf2.MulT(xf1)

	bestIndex := 0
	maxSeparation := -math.MaxFloat64
	for i, n1 := range poly1.Normals {
		n := xf.Q.MulVec(n1)
		v1 := xf.Apply(poly1.Vertices[i])

		si := math.MaxFloat64
		for _, v2 := range poly2.Vertices {
			si = math.Min(si, n.Dot(v2.Sub(v1)))
		}
		if si > maxSeparation {
			maxSeparation = si
			bestIndex = i
		}
	}
	return bestIndex, maxSeparation
}

type clipVertex struct {
	v  mgl64.Vec2
	id ContactFeature
}

// findIncidentEdge returns the edge of poly2 most anti-parallel to the
// reference edge of poly1, in world coordinates.
func findIncidentEdge(poly1 *shape.Shape, xf1 geom.Transform, edge1 int, poly2 *shape.Shape, xf2 geom.Transform) [2]clipVertex {
	normal1 := xf2.Q.MulTVec(xf1.Q.MulVec(poly1.Normals[edge1]))

	index := 0
	minDot := math.MaxFloat64
	for i, n2 := range poly2.Normals {
		if dot := normal1.Dot(n2); dot < minDot {
			minDot = dot
			index = i
		}
	}

	i1 := index
	i2 := (i1 + 1) % len(poly2.Vertices)
	return [2]clipVertex{
		{
			v:  xf2.Apply(poly2.Vertices[i1]),
			id: ContactFeature{IndexA: uint8(edge1), IndexB: uint8(i1), TypeA: FeatureFace, TypeB: FeatureVertex},
		},
		{
			v:  xf2.Apply(poly2.Vertices[i2]),
			id: ContactFeature{IndexA: uint8(edge1), IndexB: uint8(i2), TypeA: FeatureFace, TypeB: FeatureVertex},
		},
	}
}

// clipSegmentToLine is Sutherland-Hodgman clipping of a segment against the
// half-plane normal·x ≤ offset.
func clipSegmentToLine(vIn [2]clipVertex, normal mgl64.Vec2, offset float64, vertexIndexA int) ([2]clipVertex, int) {
	var vOut [2]clipVertex
	count := 0

	d0 := normal.Dot(vIn[0].v) - offset
	d1 := normal.Dot(vIn[1].v) - offset

	if d0 <= 0 {
		vOut[count] = vIn[0]
		count++
	}
	if d1 <= 0 {
		vOut[count] = vIn[1]
		count++
	}

	if d0*d1 < 0 && count < 2 {
		interp := d0 / (d0 - d1)
		vOut[count].v = vIn[0].v.Add(vIn[1].v.Sub(vIn[0].v).Mul(interp))
		vOut[count].id = ContactFeature{
			IndexA: uint8(vertexIndexA),
			IndexB: vIn[0].id.IndexB,
			TypeA:  FeatureVertex,
			TypeB:  FeatureFace,
		}
		count++
	}
	return vOut, count
}

// CollidePolygons computes the manifold of two convex polygons:
//   - find the edge normal of max separation on A, then on B
//   - pick the reference face (A unless B is clearly better)
//   - find the incident edge on the other polygon
//   - clip the incident edge against the reference face's side planes
//   - keep clip points below the reference face
func CollidePolygons(m *Manifold, polyA *shape.Shape, xfA geom.Transform, polyB *shape.Shape, xfB geom.Transform) {
	m.PointCount = 0
	totalRadius := polyA.Radius + polyB.Radius

	edgeA, separationA := findMaxSeparation(polyA, xfA, polyB, xfB)
	if separationA > totalRadius {
		return
	}
	edgeB, separationB := findMaxSeparation(polyB, xfB, polyA, xfA)
	if separationB > totalRadius {
		return
	}

	poly1, poly2 := polyA, polyB
	xf1, xf2 := xfA, xfB
	edge1 := edgeA
	m.Type = ManifoldFaceA
	flip := false

	const tol = 0.1 * shape.LinearSlop
	if separationB > separationA+tol {
		poly1, poly2 = polyB, polyA
		xf1, xf2 = xfB, xfA
		edge1 = edgeB
		m.Type = ManifoldFaceB
		flip = true
	}

	incidentEdge := findIncidentEdge(poly1, xf1, edge1, poly2, xf2)

	iv1 := edge1
	iv2 := (edge1 + 1) % len(poly1.Vertices)
	v11 := poly1.Vertices[iv1]
	v12 := poly1.Vertices[iv2]

	localTangent, _ := geom.Normalize(v12.Sub(v11))
	localNormal := geom.CrossVS(localTangent, 1)
	planePoint := v11.Add(v12).Mul(0.5)

	tangent := xf1.Q.MulVec(localTangent)
	normal := geom.CrossVS(tangent, 1)

	v11 = xf1.Apply(v11)
	v12 = xf1.Apply(v12)

	frontOffset := normal.Dot(v11)
	sideOffset1 := -tangent.Dot(v11) + totalRadius
	sideOffset2 := tangent.Dot(v12) + totalRadius

	clipPoints1, n := clipSegmentToLine(incidentEdge, tangent.Mul(-1), sideOffset1, iv1)
	if n < 2 {
		return
	}
	clipPoints2, n := clipSegmentToLine(clipPoints1, tangent, sideOffset2, iv2)
	if n < 2 {
		return
	}

	m.LocalNormal = localNormal
	m.LocalPoint = planePoint

	pointCount := 0
	for i := 0; i < MaxManifoldPoints; i++ {
		separation := normal.Dot(clipPoints2[i].v) - frontOffset
		if separation > totalRadius {
			continue
		}
		cp := &m.Points[pointCount]
		cp.LocalPoint = xf2.ApplyInv(clipPoints2[i].v)
		cp.ID = clipPoints2[i].id
		if flip {
			cf := cp.ID
			cp.ID = ContactFeature{IndexA: cf.IndexB, IndexB: cf.IndexA, TypeA: cf.TypeB, TypeB: cf.TypeA}
		}
		pointCount++
	}
	m.PointCount = pointCount
}
