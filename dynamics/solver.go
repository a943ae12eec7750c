package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/collision"
	"github.com/0x5844/rigid2d/geom"
)

// solverBody is the working state of a body during one solve.
type solverBody struct {
	c mgl64.Vec2
	a float64
	v mgl64.Vec2
	w float64
}

type velocityConstraintPoint struct {
	rA, rB         mgl64.Vec2
	normalImpulse  float64
	tangentImpulse float64
	normalMass     float64
	tangentMass    float64
	velocityBias   float64
}

type velocityConstraint struct {
	points      [collision.MaxManifoldPoints]velocityConstraintPoint
	normal      mgl64.Vec2
	normalMass  mgl64.Mat2
	k           mgl64.Mat2
	indexA      int
	indexB      int
	invMassA    float64
	invMassB    float64
	invIA       float64
	invIB       float64
	friction    float64
	restitution float64
	pointCount  int
	contact     *Contact
}

type positionConstraint struct {
	localPoints  [collision.MaxManifoldPoints]mgl64.Vec2
	localNormal  mgl64.Vec2
	localPoint   mgl64.Vec2
	indexA       int
	indexB       int
	invMassA     float64
	invMassB     float64
	localCenterA mgl64.Vec2
	localCenterB mgl64.Vec2
	invIA        float64
	invIB        float64
	typ          collision.ManifoldType
	radiusA      float64
	radiusB      float64
	pointCount   int
}

// contactSolver is a sequential impulse solver over a set of contacts.
type contactSolver struct {
	bodies       []solverBody
	velocity     []velocityConstraint
	position     []positionConstraint
	warmStarting bool
	skipped      int
}

func solverTransform(c mgl64.Vec2, a float64, localCenter mgl64.Vec2) geom.Transform {
	q := geom.NewRot(a)
	return geom.Transform{P: c.Sub(q.MulVec(localCenter)), Q: q}
}

// reset prepares the solver for a step over the given bodies.
func (s *contactSolver) reset(n int, warmStarting bool) {
	if cap(s.bodies) < n {
		s.bodies = make([]solverBody, n)
	}
	s.bodies = s.bodies[:n]
	s.velocity = s.velocity[:0]
	s.position = s.position[:0]
	s.warmStarting = warmStarting
	s.skipped = 0
}

// addContact builds the constraints for a touching contact. It reports
// false, and adds nothing, when the contact is degenerate.
func (s *contactSolver) addContact(c *Contact) bool {
	fA, fB := c.fixtureA, c.fixtureB
	bA, bB := fA.body, fB.body
	m := &c.manifold
	if m.PointCount == 0 {
		return false
	}

	sbA := &s.bodies[bA.solverIndex]
	sbB := &s.bodies[bB.solverIndex]
	xfA := solverTransform(sbA.c, sbA.a, bA.sweep.LocalCenter)
	xfB := solverTransform(sbB.c, sbB.a, bB.sweep.LocalCenter)

	var wm collision.WorldManifold
	wm.Initialize(m, xfA, fA.shape.Radius, xfB, fB.shape.Radius)
	if !geom.IsFinite(wm.Normal) || math.Abs(geom.LenSq(wm.Normal)-1) > 1e-6 {
		return false
	}

	vc := velocityConstraint{
		normal:      wm.Normal,
		indexA:      bA.solverIndex,
		indexB:      bB.solverIndex,
		invMassA:    bA.invMass,
		invMassB:    bB.invMass,
		invIA:       bA.invI,
		invIB:       bB.invI,
		friction:    c.friction,
		restitution: c.restitution,
		pointCount:  m.PointCount,
		contact:     c,
	}
	pc := positionConstraint{
		localNormal:  m.LocalNormal,
		localPoint:   m.LocalPoint,
		indexA:       bA.solverIndex,
		indexB:       bB.solverIndex,
		invMassA:     bA.invMass,
		invMassB:     bB.invMass,
		localCenterA: bA.sweep.LocalCenter,
		localCenterB: bB.sweep.LocalCenter,
		invIA:        bA.invI,
		invIB:        bB.invI,
		typ:          m.Type,
		radiusA:      fA.shape.Radius,
		radiusB:      fB.shape.Radius,
		pointCount:   m.PointCount,
	}

	mA, mB := vc.invMassA, vc.invMassB
	iA, iB := vc.invIA, vc.invIB
	cA, cB := sbA.c, sbB.c
	vA, wA := sbA.v, sbA.w
	vB, wB := sbB.v, sbB.w
	normal := vc.normal
	tangent := geom.CrossVS(normal, 1)

	for j := 0; j < m.PointCount; j++ {
		mp := &m.Points[j]
		vcp := &vc.points[j]
		pc.localPoints[j] = mp.LocalPoint

		if s.warmStarting {
			vcp.normalImpulse = mp.NormalImpulse
			vcp.tangentImpulse = mp.TangentImpulse
		}

		vcp.rA = wm.Points[j].Sub(cA)
		vcp.rB = wm.Points[j].Sub(cB)

		rnA := geom.Cross(vcp.rA, normal)
		rnB := geom.Cross(vcp.rB, normal)
		kNormal := mA + mB + iA*rnA*rnA + iB*rnB*rnB
		if !finite(kNormal) || kNormal <= 0 {
			return false
		}
		vcp.normalMass = 1 / kNormal

		rtA := geom.Cross(vcp.rA, tangent)
		rtB := geom.Cross(vcp.rB, tangent)
		kTangent := mA + mB + iA*rtA*rtA + iB*rtB*rtB
		if kTangent > 0 && finite(kTangent) {
			vcp.tangentMass = 1 / kTangent
		}

		// Velocity bias for restitution.
		vRel := normal.Dot(vB.Add(geom.CrossSV(wB, vcp.rB)).Sub(vA).Sub(geom.CrossSV(wA, vcp.rA)))
		if !finite(vRel) {
			return false
		}
		if vRel < -VelocityThreshold {
			vcp.velocityBias = -vc.restitution * vRel
		}
	}

	if vc.pointCount == 2 {
		vcp1, vcp2 := &vc.points[0], &vc.points[1]
		rn1A := geom.Cross(vcp1.rA, normal)
		rn1B := geom.Cross(vcp1.rB, normal)
		rn2A := geom.Cross(vcp2.rA, normal)
		rn2B := geom.Cross(vcp2.rB, normal)

		k11 := mA + mB + iA*rn1A*rn1A + iB*rn1B*rn1B
		k22 := mA + mB + iA*rn2A*rn2A + iB*rn2B*rn2B
		k12 := mA + mB + iA*rn1A*rn2A + iB*rn1B*rn2B

		if k11*k11 < maxConditionNumber*(k11*k22-k12*k12) {
			vc.k = mgl64.Mat2{k11, k12, k12, k22}
			vc.normalMass = vc.k.Inv()
		} else {
			// The points are redundant; solve one.
			vc.pointCount = 1
		}
	}

	s.velocity = append(s.velocity, vc)
	s.position = append(s.position, pc)
	return true
}

func (s *contactSolver) warmStart() {
	for i := range s.velocity {
		vc := &s.velocity[i]
		sbA, sbB := &s.bodies[vc.indexA], &s.bodies[vc.indexB]
		normal := vc.normal
		tangent := geom.CrossVS(normal, 1)

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]
			p := normal.Mul(vcp.normalImpulse).Add(tangent.Mul(vcp.tangentImpulse))
			sbA.w -= vc.invIA * geom.Cross(vcp.rA, p)
			sbA.v = sbA.v.Sub(p.Mul(vc.invMassA))
			sbB.w += vc.invIB * geom.Cross(vcp.rB, p)
			sbB.v = sbB.v.Add(p.Mul(vc.invMassB))
		}
	}
}

func relativeVelocity(vA mgl64.Vec2, wA float64, rA mgl64.Vec2, vB mgl64.Vec2, wB float64, rB mgl64.Vec2) mgl64.Vec2 {
	return vB.Add(geom.CrossSV(wB, rB)).Sub(vA).Sub(geom.CrossSV(wA, rA))
}

func (s *contactSolver) solveVelocityConstraints() {
	for i := range s.velocity {
		vc := &s.velocity[i]
		sbA, sbB := &s.bodies[vc.indexA], &s.bodies[vc.indexB]
		mA, mB := vc.invMassA, vc.invMassB
		iA, iB := vc.invIA, vc.invIB

		vA, wA := sbA.v, sbA.w
		vB, wB := sbB.v, sbB.w

		normal := vc.normal
		tangent := geom.CrossVS(normal, 1)

		// Tangent constraints first: non-penetration matters more than
		// friction.
		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]
			dv := relativeVelocity(vA, wA, vcp.rA, vB, wB, vcp.rB)
			vt := dv.Dot(tangent)
			lambda := vcp.tangentMass * -vt

			maxFriction := vc.friction * vcp.normalImpulse
			newImpulse := mgl64.Clamp(vcp.tangentImpulse+lambda, -maxFriction, maxFriction)
			lambda = newImpulse - vcp.tangentImpulse
			vcp.tangentImpulse = newImpulse

			p := tangent.Mul(lambda)
			vA = vA.Sub(p.Mul(mA))
			wA -= iA * geom.Cross(vcp.rA, p)
			vB = vB.Add(p.Mul(mB))
			wB += iB * geom.Cross(vcp.rB, p)
		}

		if vc.pointCount == 1 {
			vcp := &vc.points[0]
			dv := relativeVelocity(vA, wA, vcp.rA, vB, wB, vcp.rB)
			vn := dv.Dot(normal)
			lambda := -vcp.normalMass * (vn - vcp.velocityBias)

			newImpulse := math.Max(vcp.normalImpulse+lambda, 0)
			lambda = newImpulse - vcp.normalImpulse
			vcp.normalImpulse = newImpulse

			p := normal.Mul(lambda)
			vA = vA.Sub(p.Mul(mA))
			wA -= iA * geom.Cross(vcp.rA, p)
			vB = vB.Add(p.Mul(mB))
			wB += iB * geom.Cross(vcp.rB, p)
		} else {
			vA, wA, vB, wB = s.solveBlock(vc, vA, wA, vB, wB)
		}

		sbA.v, sbA.w = vA, wA
		sbB.v, sbB.w = vB, wB
	}
}

// solveBlock solves both normal constraints of a two-point manifold as a
// linear complementarity problem by enumerating its four cases:
//
//	vn = A*x + b, vn >= 0, x >= 0, vn_i*x_i = 0
//
// The accumulated impulse a is folded in with b' = b - A*a so the solve is
// for the new total impulse x.
func (s *contactSolver) solveBlock(vc *velocityConstraint, vA mgl64.Vec2, wA float64, vB mgl64.Vec2, wB float64) (mgl64.Vec2, float64, mgl64.Vec2, float64) {
	mA, mB := vc.invMassA, vc.invMassB
	iA, iB := vc.invIA, vc.invIB
	normal := vc.normal
	cp1, cp2 := &vc.points[0], &vc.points[1]

	a := mgl64.Vec2{cp1.normalImpulse, cp2.normalImpulse}

	vn1 := relativeVelocity(vA, wA, cp1.rA, vB, wB, cp1.rB).Dot(normal)
	vn2 := relativeVelocity(vA, wA, cp2.rA, vB, wB, cp2.rB).Dot(normal)

	b := mgl64.Vec2{vn1 - cp1.velocityBias, vn2 - cp2.velocityBias}
	b = b.Sub(vc.k.Mul2x1(a))

	apply := func(x mgl64.Vec2) {
		d := x.Sub(a)
		p1 := normal.Mul(d[0])
		p2 := normal.Mul(d[1])
		vA = vA.Sub(p1.Add(p2).Mul(mA))
		wA -= iA * (geom.Cross(cp1.rA, p1) + geom.Cross(cp2.rA, p2))
		vB = vB.Add(p1.Add(p2).Mul(mB))
		wB += iB * (geom.Cross(cp1.rB, p1) + geom.Cross(cp2.rB, p2))
		cp1.normalImpulse = x[0]
		cp2.normalImpulse = x[1]
	}

	// Case 1: both points active, vn = 0.
	x := vc.normalMass.Mul2x1(b).Mul(-1)
	if x[0] >= 0 && x[1] >= 0 {
		apply(x)
		return vA, wA, vB, wB
	}

	// Case 2: vn1 = 0, x2 = 0.
	x = mgl64.Vec2{-cp1.normalMass * b[0], 0}
	vn2 = vc.k[1]*x[0] + b[1]
	if x[0] >= 0 && vn2 >= 0 {
		apply(x)
		return vA, wA, vB, wB
	}

	// Case 3: vn2 = 0, x1 = 0.
	x = mgl64.Vec2{0, -cp2.normalMass * b[1]}
	vn1 = vc.k[2]*x[1] + b[0]
	if x[1] >= 0 && vn1 >= 0 {
		apply(x)
		return vA, wA, vB, wB
	}

	// Case 4: both points separating.
	x = mgl64.Vec2{}
	if b[0] >= 0 && b[1] >= 0 {
		apply(x)
	}
	return vA, wA, vB, wB
}

// storeImpulses copies the accumulated impulses back to the manifolds for
// warm starting.
func (s *contactSolver) storeImpulses() {
	for i := range s.velocity {
		vc := &s.velocity[i]
		m := &vc.contact.manifold
		for j := 0; j < vc.pointCount; j++ {
			m.Points[j].NormalImpulse = vc.points[j].normalImpulse
			m.Points[j].TangentImpulse = vc.points[j].tangentImpulse
		}
	}
}

// positionManifold evaluates one point of a position constraint at the
// solver's current poses.
func positionManifold(pc *positionConstraint, xfA, xfB geom.Transform, index int) (normal, point mgl64.Vec2, separation float64) {
	switch pc.typ {
	case collision.ManifoldCircles:
		pointA := xfA.Apply(pc.localPoint)
		pointB := xfB.Apply(pc.localPoints[0])
		normal, _ = geom.Normalize(pointB.Sub(pointA))
		if geom.LenSq(normal) == 0 {
			normal = mgl64.Vec2{1, 0}
		}
		point = pointA.Add(pointB).Mul(0.5)
		separation = pointB.Sub(pointA).Dot(normal) - pc.radiusA - pc.radiusB

	case collision.ManifoldFaceA:
		normal = xfA.Q.MulVec(pc.localNormal)
		planePoint := xfA.Apply(pc.localPoint)
		clipPoint := xfB.Apply(pc.localPoints[index])
		separation = clipPoint.Sub(planePoint).Dot(normal) - pc.radiusA - pc.radiusB
		point = clipPoint

	case collision.ManifoldFaceB:
		normal = xfB.Q.MulVec(pc.localNormal)
		planePoint := xfB.Apply(pc.localPoint)
		clipPoint := xfA.Apply(pc.localPoints[index])
		separation = clipPoint.Sub(planePoint).Dot(normal) - pc.radiusA - pc.radiusB
		point = clipPoint
		normal = normal.Mul(-1)
	}
	return normal, point, separation
}

// solvePositionConstraints pushes overlapping bodies apart and reports
// whether the remaining overlap is within tolerance.
func (s *contactSolver) solvePositionConstraints() bool {
	minSeparation := 0.0

	for i := range s.position {
		pc := &s.position[i]
		sbA, sbB := &s.bodies[pc.indexA], &s.bodies[pc.indexB]
		mA, iA := pc.invMassA, pc.invIA
		mB, iB := pc.invMassB, pc.invIB

		cA, aA := sbA.c, sbA.a
		cB, aB := sbB.c, sbB.a

		for j := 0; j < pc.pointCount; j++ {
			xfA := solverTransform(cA, aA, pc.localCenterA)
			xfB := solverTransform(cB, aB, pc.localCenterB)

			normal, point, separation := positionManifold(pc, xfA, xfB, j)

			rA := point.Sub(cA)
			rB := point.Sub(cB)

			minSeparation = math.Min(minSeparation, separation)

			// Allow some slop and cap the correction.
			C := mgl64.Clamp(Baumgarte*(separation+LinearSlop), -MaxLinearCorrection, 0)

			rnA := geom.Cross(rA, normal)
			rnB := geom.Cross(rB, normal)
			K := mA + mB + iA*rnA*rnA + iB*rnB*rnB

			impulse := 0.0
			if K > 0 {
				impulse = -C / K
			}

			p := normal.Mul(impulse)
			cA = cA.Sub(p.Mul(mA))
			aA -= iA * geom.Cross(rA, p)
			cB = cB.Add(p.Mul(mB))
			aB += iB * geom.Cross(rB, p)
		}

		sbA.c, sbA.a = cA, aA
		sbB.c, sbB.a = cB, aB
	}

	// Separation is never pushed above -LinearSlop, so allow a margin.
	return minSeparation >= -3*LinearSlop
}

// integratePositions advances the solver bodies by h, clamping large
// motions.
func (s *contactSolver) integratePositions(h float64) {
	for i := range s.bodies {
		sb := &s.bodies[i]
		translation := sb.v.Mul(h)
		if translation.Dot(translation) > MaxTranslation*MaxTranslation {
			sb.v = sb.v.Mul(MaxTranslation / translation.Len())
		}
		rotation := h * sb.w
		if rotation*rotation > MaxRotation*MaxRotation {
			sb.w *= MaxRotation / math.Abs(rotation)
		}
		sb.c = sb.c.Add(sb.v.Mul(h))
		sb.a += h * sb.w
	}
}

// impulse returns the accumulated impulses of constraint i.
func (s *contactSolver) impulse(i int) ContactImpulse {
	vc := &s.velocity[i]
	ci := ContactImpulse{Count: vc.pointCount}
	for j := 0; j < vc.pointCount; j++ {
		ci.NormalImpulses[j] = vc.points[j].normalImpulse
		ci.TangentImpulses[j] = vc.points[j].tangentImpulse
	}
	return ci
}
