// Package broadphase finds candidate shape pairs with a uniform spatial
// hash grid.
//
// Every shape owns a proxy: a fattened AABB that is binned into each grid
// cell it covers. A proxy is only re-binned when its tight AABB escapes the
// fat one, so slowly moving shapes cost nothing between steps. Pairs are
// reported for proxies that moved since the last UpdatePairs.
package broadphase

import (
	"math"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/internal/arena"
)

const (
	// Margin fattens proxy AABBs so small motions do not re-bin them.
	Margin = 0.1
	// displacementMultiplier extends fat AABBs along the direction of motion.
	displacementMultiplier = 2.0
	// maxProxyCells is the most cells a proxy is binned into. Larger proxies
	// are tested against every query instead.
	maxProxyCells = 4096
	// DefaultCellSize is used when NewGrid is given a non-positive size.
	DefaultCellSize = 4.0
)

// ProxyID identifies a proxy. The zero ProxyID is never issued.
type ProxyID arena.Handle

// IsZero reports whether id is the zero ProxyID.
func (id ProxyID) IsZero() bool { return arena.Handle(id).IsZero() }

func (id ProxyID) less(o ProxyID) bool { return arena.Handle(id).Less(arena.Handle(o)) }

// GridCell is the integer coordinate of a grid cell.
type GridCell struct {
	X, Y int
}

type proxy struct {
	fat      geom.AABB
	userData any
	lo, hi   GridCell
	large    bool
	moved    bool
}

type pair struct {
	a, b ProxyID
}

// Grid is a spatial hash of proxies.
type Grid struct {
	mutex    sync.RWMutex
	cellSize float64
	cells    map[GridCell][]ProxyID
	large    []ProxyID
	proxies  *arena.Arena[proxy]
	moved    []ProxyID
	pairs    []pair
	seen     map[ProxyID]struct{}
}

// NewGrid returns an empty grid with the given cell size.
func NewGrid(cellSize float64) *Grid {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[GridCell][]ProxyID),
		proxies:  arena.New[proxy](64),
		seen:     make(map[ProxyID]struct{}),
	}
}

// CellSize returns the grid's cell edge length.
func (g *Grid) CellSize() float64 { return g.cellSize }

func (g *Grid) getCell(pos mgl64.Vec2) GridCell {
	return GridCell{
		X: int(math.Floor(pos[0] / g.cellSize)),
		Y: int(math.Floor(pos[1] / g.cellSize)),
	}
}

func cellSpan(lo, hi GridCell) int {
	w := hi.X - lo.X + 1
	h := hi.Y - lo.Y + 1
	if w <= 0 || h <= 0 {
		return 0
	}
	if w > maxProxyCells || h > maxProxyCells {
		return maxProxyCells + 1
	}
	return w * h
}

// cellRange clamps non-finite bounds so a bad AABB cannot explode the loop.
func (g *Grid) cellRange(aabb geom.AABB) (GridCell, GridCell, bool) {
	if !geom.IsFinite(aabb.Min) || !geom.IsFinite(aabb.Max) {
		return GridCell{}, GridCell{}, false
	}
	lo, hi := g.getCell(aabb.Min), g.getCell(aabb.Max)
	return lo, hi, cellSpan(lo, hi) <= maxProxyCells
}

func (g *Grid) insert(id ProxyID, p *proxy) {
	lo, hi, ok := g.cellRange(p.fat)
	p.lo, p.hi = lo, hi
	if !ok {
		p.large = true
		g.large = append(g.large, id)
		return
	}
	p.large = false
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			cell := GridCell{X: x, Y: y}
			g.cells[cell] = append(g.cells[cell], id)
		}
	}
}

func removeID(ids []ProxyID, id ProxyID) []ProxyID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}

func (g *Grid) remove(id ProxyID, p *proxy) {
	if p.large {
		g.large = removeID(g.large, id)
		return
	}
	for x := p.lo.X; x <= p.hi.X; x++ {
		for y := p.lo.Y; y <= p.hi.Y; y++ {
			cell := GridCell{X: x, Y: y}
			ids := removeID(g.cells[cell], id)
			if len(ids) == 0 {
				delete(g.cells, cell)
			} else {
				g.cells[cell] = ids
			}
		}
	}
}

func (g *Grid) bufferMove(id ProxyID, p *proxy) {
	if p.moved {
		return
	}
	p.moved = true
	g.moved = append(g.moved, id)
}

// CreateProxy adds a proxy for aabb and returns its ID. The proxy is
// reported by the next UpdatePairs.
func (g *Grid) CreateProxy(aabb geom.AABB, userData any) ProxyID {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	h := g.proxies.Insert(proxy{fat: aabb.Expand(Margin), userData: userData})
	id := ProxyID(h)
	p := g.proxies.Ptr(h)
	g.insert(id, p)
	g.bufferMove(id, p)
	return id
}

// DestroyProxy removes a proxy. Stale IDs are ignored.
func (g *Grid) DestroyProxy(id ProxyID) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	p := g.proxies.Ptr(arena.Handle(id))
	if p == nil {
		return false
	}
	g.remove(id, p)
	g.proxies.Retire(arena.Handle(id))
	return true
}

// MoveProxy updates a proxy for a new tight aabb that moved by
// displacement. It reports whether the proxy was re-binned; a proxy whose
// fat AABB still contains aabb is left alone.
func (g *Grid) MoveProxy(id ProxyID, aabb geom.AABB, displacement mgl64.Vec2) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	p := g.proxies.Ptr(arena.Handle(id))
	if p == nil {
		return false
	}
	if p.fat.ContainsAABB(aabb) {
		return false
	}

	fat := aabb.Expand(Margin)
	d := displacement.Mul(displacementMultiplier)
	if d[0] < 0 {
		fat.Min[0] += d[0]
	} else {
		fat.Max[0] += d[0]
	}
	if d[1] < 0 {
		fat.Min[1] += d[1]
	} else {
		fat.Max[1] += d[1]
	}

	g.remove(id, p)
	p.fat = fat
	g.insert(id, p)
	g.bufferMove(id, p)
	return true
}

// TouchProxy makes the next UpdatePairs report the proxy's pairs again.
func (g *Grid) TouchProxy(id ProxyID) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if p := g.proxies.Ptr(arena.Handle(id)); p != nil {
		g.bufferMove(id, p)
	}
}

// FatAABB returns the fattened AABB of a proxy.
func (g *Grid) FatAABB(id ProxyID) (geom.AABB, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	p, ok := g.proxies.Get(arena.Handle(id))
	return p.fat, ok
}

// UserData returns the value a proxy was created with.
func (g *Grid) UserData(id ProxyID) any {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	p, _ := g.proxies.Get(arena.Handle(id))
	return p.userData
}

// TestOverlap reports whether the fat AABBs of two proxies overlap.
func (g *Grid) TestOverlap(a, b ProxyID) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	pa, okA := g.proxies.Get(arena.Handle(a))
	pb, okB := g.proxies.Get(arena.Handle(b))
	return okA && okB && pa.fat.Overlaps(pb.fat)
}

// ProxyCount returns the number of live proxies.
func (g *Grid) ProxyCount() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.proxies.Len()
}

// CellCount returns the number of occupied grid cells.
func (g *Grid) CellCount() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.cells)
}

// candidates visits every proxy whose cells intersect aabb, once each, in a
// deterministic order. Callers hold the lock.
func (g *Grid) candidates(aabb geom.AABB, visit func(id ProxyID, p *proxy)) {
	clear(g.seen)
	lo, hi, ok := g.cellRange(aabb)
	if !ok || cellSpan(lo, hi) > len(g.cells)+len(g.large) {
		// Walking the cells would cost more than walking every proxy.
		for _, h := range g.proxies.Handles() {
			visit(ProxyID(h), g.proxies.Ptr(h))
		}
		return
	}
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for _, id := range g.cells[GridCell{X: x, Y: y}] {
				if _, dup := g.seen[id]; dup {
					continue
				}
				g.seen[id] = struct{}{}
				visit(id, g.proxies.Ptr(arena.Handle(id)))
			}
		}
	}
	for _, id := range g.large {
		if _, dup := g.seen[id]; dup {
			continue
		}
		g.seen[id] = struct{}{}
		visit(id, g.proxies.Ptr(arena.Handle(id)))
	}
}

// UpdatePairs calls fn once for every pair of proxies with overlapping fat
// AABBs where at least one proxy moved since the last call. Pairs are
// reported in ascending proxy order with the lower proxy first. fn receives
// the proxies' user data and may call back into the grid.
func (g *Grid) UpdatePairs(fn func(userDataA, userDataB any)) {
	g.mutex.Lock()
	g.pairs = g.pairs[:0]
	for _, id := range g.moved {
		p := g.proxies.Ptr(arena.Handle(id))
		if p == nil {
			continue
		}
		fat := p.fat
		g.candidates(fat, func(other ProxyID, q *proxy) {
			if other == id || !fat.Overlaps(q.fat) {
				return
			}
			if other.less(id) {
				g.pairs = append(g.pairs, pair{a: other, b: id})
			} else {
				g.pairs = append(g.pairs, pair{a: id, b: other})
			}
		})
	}
	for _, id := range g.moved {
		if p := g.proxies.Ptr(arena.Handle(id)); p != nil {
			p.moved = false
		}
	}
	g.moved = g.moved[:0]

	slices.SortFunc(g.pairs, func(x, y pair) int {
		switch {
		case x.a.less(y.a):
			return -1
		case y.a.less(x.a):
			return 1
		case x.b.less(y.b):
			return -1
		case y.b.less(x.b):
			return 1
		}
		return 0
	})
	g.pairs = slices.Compact(g.pairs)

	type report struct{ a, b any }
	reports := make([]report, len(g.pairs))
	for i, pr := range g.pairs {
		pa, _ := g.proxies.Get(arena.Handle(pr.a))
		pb, _ := g.proxies.Get(arena.Handle(pr.b))
		reports[i] = report{pa.userData, pb.userData}
	}
	g.proxies.Sweep()
	g.mutex.Unlock()

	for _, r := range reports {
		fn(r.a, r.b)
	}
}

// Query calls fn for each proxy whose fat AABB overlaps aabb until fn
// returns false.
func (g *Grid) Query(aabb geom.AABB, fn func(id ProxyID) bool) {
	g.mutex.RLock()
	var hits []ProxyID
	g.candidates(aabb, func(id ProxyID, p *proxy) {
		if p.fat.Overlaps(aabb) {
			hits = append(hits, id)
		}
	})
	g.mutex.RUnlock()

	for _, id := range hits {
		if !fn(id) {
			return
		}
	}
}

// RayCastFunc receives the ray clipped to the current max fraction and a
// proxy whose fat AABB the ray crosses. It returns the new max fraction:
// 0 stops the cast, a value in (0, 1] clips the ray, and a negative value
// leaves it unchanged.
type RayCastFunc func(in geom.RayInput, id ProxyID) float64

// RayCast visits the proxies crossed by the segment in.P1 → in.P2, nearest
// fat AABB first.
func (g *Grid) RayCast(in geom.RayInput, fn RayCastFunc) {
	maxFraction := in.MaxFraction
	end := in.P1.Add(in.P2.Sub(in.P1).Mul(maxFraction))
	bounds := geom.NewAABB(geom.MinVec(in.P1, end), geom.MaxVec(in.P1, end))

	type entry struct {
		id       ProxyID
		fraction float64
	}

	g.mutex.RLock()
	var hits []entry
	g.candidates(bounds, func(id ProxyID, p *proxy) {
		if p.fat.Contains(in.P1) {
			hits = append(hits, entry{id, 0})
			return
		}
		if out, ok := p.fat.RayCast(in); ok {
			hits = append(hits, entry{id, out.Fraction})
		}
	})
	g.mutex.RUnlock()

	slices.SortStableFunc(hits, func(a, b entry) int {
		switch {
		case a.fraction < b.fraction:
			return -1
		case a.fraction > b.fraction:
			return 1
		}
		return 0
	})

	for _, h := range hits {
		if h.fraction > maxFraction {
			return
		}
		sub := geom.RayInput{P1: in.P1, P2: in.P2, MaxFraction: maxFraction}
		value := fn(sub, h.id)
		if value == 0 {
			return
		}
		if value > 0 {
			maxFraction = min(maxFraction, value)
		}
	}
}
