package dynamics

// islands groups non-static bodies connected through touching contacts.
// Bodies in one island wake and sleep together. Static bodies do not join
// islands, so a floor does not merge every stack resting on it.
type islands struct {
	parent []int
	rank   []uint8
	bodies []*Body
}

func (is *islands) reset(bodies []*Body) {
	n := len(bodies)
	is.bodies = bodies
	if cap(is.parent) < n {
		is.parent = make([]int, n)
		is.rank = make([]uint8, n)
	}
	is.parent = is.parent[:n]
	is.rank = is.rank[:n]
	for i := range is.parent {
		is.parent[i] = i
		is.rank[i] = 0
		bodies[i].islandRoot = i
	}
}

func (is *islands) find(i int) int {
	for is.parent[i] != i {
		is.parent[i] = is.parent[is.parent[i]]
		i = is.parent[i]
	}
	return i
}

func (is *islands) union(i, j int) {
	ri, rj := is.find(i), is.find(j)
	if ri == rj {
		return
	}
	switch {
	case is.rank[ri] < is.rank[rj]:
		is.parent[ri] = rj
	case is.rank[ri] > is.rank[rj]:
		is.parent[rj] = ri
	default:
		is.parent[rj] = ri
		is.rank[ri]++
	}
}

// link joins the islands of two bodies whose indices were assigned by
// reset.
func (is *islands) link(a, b *Body) {
	is.union(a.islandRoot, b.islandRoot)
}

// groups returns the members of each island, keyed by root, with islands
// and their members in body order.
func (is *islands) groups() [][]*Body {
	index := make(map[int]int)
	var out [][]*Body
	for i, b := range is.bodies {
		root := is.find(i)
		g, ok := index[root]
		if !ok {
			g = len(out)
			index[root] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], b)
	}
	return out
}

// propagateWake wakes every body in an island that has an awake member
// and returns the awake islands.
func propagateWake(groups [][]*Body) [][]*Body {
	awake := groups[:0:0]
	for _, g := range groups {
		anyAwake := false
		for _, b := range g {
			if b.awake {
				anyAwake = true
				break
			}
		}
		if !anyAwake {
			continue
		}
		for _, b := range g {
			b.SetAwake(true)
		}
		awake = append(awake, g)
	}
	return awake
}

// updateSleep advances the sleep timers of an awake island and puts it to
// sleep once every member has rested for TimeToSleep.
func updateSleep(group []*Body, h float64, positionSolved bool) bool {
	const linTolSq = LinearSleepTolerance * LinearSleepTolerance
	const angTolSq = AngularSleepTolerance * AngularSleepTolerance

	minSleepTime := TimeToSleep * 2
	for _, b := range group {
		if !b.sleepingAllowed ||
			b.angularVelocity*b.angularVelocity > angTolSq ||
			b.linearVelocity.Dot(b.linearVelocity) > linTolSq {
			b.sleepTime = 0
			minSleepTime = 0
			continue
		}
		b.sleepTime += h
		minSleepTime = min(minSleepTime, b.sleepTime)
	}

	if minSleepTime >= TimeToSleep && positionSolved {
		for _, b := range group {
			b.SetAwake(false)
		}
		return true
	}
	return false
}
