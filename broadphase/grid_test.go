package broadphase

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/geom"
)

func box(x, y, h float64) geom.AABB {
	return geom.NewAABB(mgl64.Vec2{x - h, y - h}, mgl64.Vec2{x + h, y + h})
}

func collectPairs(g *Grid) [][2]string {
	var out [][2]string
	g.UpdatePairs(func(a, b any) {
		out = append(out, [2]string{a.(string), b.(string)})
	})
	return out
}

func TestUpdatePairsReportsOverlapsOnce(t *testing.T) {
	g := NewGrid(1)
	g.CreateProxy(box(0, 0, 0.5), "a")
	g.CreateProxy(box(0.8, 0, 0.5), "b")
	g.CreateProxy(box(10, 10, 0.5), "c")

	pairs := collectPairs(g)
	if len(pairs) != 1 || pairs[0] != [2]string{"a", "b"} {
		t.Fatalf("pairs = %v, want [[a b]]", pairs)
	}
	if again := collectPairs(g); len(again) != 0 {
		t.Errorf("second UpdatePairs without motion = %v, want none", again)
	}
}

func TestUpdatePairsOrderIsDeterministic(t *testing.T) {
	g := NewGrid(2)
	for _, name := range []string{"p0", "p1", "p2", "p3"} {
		g.CreateProxy(box(0, 0, 1), name)
	}
	pairs := collectPairs(g)
	want := [][2]string{
		{"p0", "p1"}, {"p0", "p2"}, {"p0", "p3"},
		{"p1", "p2"}, {"p1", "p3"},
		{"p2", "p3"},
	}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d: %v", len(pairs), len(want), pairs)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair[%d] = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestMoveProxy(t *testing.T) {
	g := NewGrid(1)
	a := g.CreateProxy(box(0, 0, 0.5), "a")
	g.CreateProxy(box(5, 0, 0.5), "b")
	collectPairs(g)

	if g.MoveProxy(a, box(0.05, 0, 0.5), mgl64.Vec2{0.05, 0}) {
		t.Error("move inside the fat AABB re-binned the proxy")
	}
	if !g.MoveProxy(a, box(4.5, 0, 0.5), mgl64.Vec2{4.5, 0}) {
		t.Fatal("move outside the fat AABB was ignored")
	}
	fat, _ := g.FatAABB(a)
	if fat.Max[0] < 5+Margin+2*4.5-1e-9 {
		t.Errorf("fat AABB %v not extended along displacement", fat)
	}
	pairs := collectPairs(g)
	if len(pairs) != 1 || pairs[0] != [2]string{"a", "b"} {
		t.Errorf("pairs after move = %v, want [[a b]]", pairs)
	}
}

func TestTouchProxy(t *testing.T) {
	g := NewGrid(1)
	a := g.CreateProxy(box(0, 0, 0.5), "a")
	g.CreateProxy(box(0.5, 0, 0.5), "b")
	collectPairs(g)

	g.TouchProxy(a)
	if pairs := collectPairs(g); len(pairs) != 1 {
		t.Errorf("touched proxy pairs = %v, want 1", pairs)
	}
}

func TestDestroyProxyRejectsStaleIDs(t *testing.T) {
	g := NewGrid(1)
	a := g.CreateProxy(box(0, 0, 0.5), "a")
	g.CreateProxy(box(0.5, 0, 0.5), "b")

	if !g.DestroyProxy(a) {
		t.Fatal("DestroyProxy failed")
	}
	if g.DestroyProxy(a) {
		t.Error("second DestroyProxy succeeded")
	}
	if _, ok := g.FatAABB(a); ok {
		t.Error("FatAABB resolved a destroyed proxy")
	}
	if pairs := collectPairs(g); len(pairs) != 0 {
		t.Errorf("destroyed proxy still paired: %v", pairs)
	}

	c := g.CreateProxy(box(0, 0, 0.5), "c")
	if c == a {
		t.Error("new proxy reissued a stale ID")
	}
	if g.UserData(a) != nil {
		t.Error("stale ID resolved to new proxy's user data")
	}
	if g.ProxyCount() != 2 {
		t.Errorf("ProxyCount = %d, want 2", g.ProxyCount())
	}
}

func TestQuery(t *testing.T) {
	g := NewGrid(1)
	ids := map[ProxyID]string{
		g.CreateProxy(box(0, 0, 0.5), "a"):  "a",
		g.CreateProxy(box(3, 0, 0.5), "b"):  "b",
		g.CreateProxy(box(-3, 0, 0.5), "c"): "c",
	}

	var found []string
	g.Query(geom.NewAABB(mgl64.Vec2{-0.2, -0.2}, mgl64.Vec2{3.2, 0.2}), func(id ProxyID) bool {
		found = append(found, ids[id])
		return true
	})
	if len(found) != 2 {
		t.Fatalf("Query found %v, want a and b", found)
	}

	count := 0
	g.Query(geom.NewAABB(mgl64.Vec2{-10, -10}, mgl64.Vec2{10, 10}), func(ProxyID) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Query kept going after fn returned false: %d calls", count)
	}
}

func TestLargeProxyIsPaired(t *testing.T) {
	g := NewGrid(0.01)
	g.CreateProxy(geom.NewAABB(mgl64.Vec2{-1000, -1}, mgl64.Vec2{1000, 0}), "ground")
	g.CreateProxy(box(500, 0.2, 0.5), "crate")
	pairs := collectPairs(g)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %v, want ground/crate", pairs)
	}
}

func TestRayCastNearestFirst(t *testing.T) {
	g := NewGrid(1)
	names := map[ProxyID]string{
		g.CreateProxy(box(6, 0, 0.5), "far"):    "far",
		g.CreateProxy(box(2, 0, 0.5), "near"):   "near",
		g.CreateProxy(box(2, 5, 0.5), "offray"): "offray",
	}
	in := geom.RayInput{P1: mgl64.Vec2{0, 0}, P2: mgl64.Vec2{10, 0}, MaxFraction: 1}

	var order []string
	g.RayCast(in, func(_ geom.RayInput, id ProxyID) float64 {
		order = append(order, names[id])
		return -1
	})
	if len(order) != 2 || order[0] != "near" || order[1] != "far" {
		t.Errorf("visit order = %v, want [near far]", order)
	}

	order = order[:0]
	g.RayCast(in, func(_ geom.RayInput, id ProxyID) float64 {
		order = append(order, names[id])
		return 0.25
	})
	if len(order) != 1 {
		t.Errorf("clipped ray visited %v, want only near", order)
	}
}

func TestNewGridDefaultsCellSize(t *testing.T) {
	for _, size := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if got := NewGrid(size).CellSize(); got != DefaultCellSize {
			t.Errorf("NewGrid(%v).CellSize() = %v, want %v", size, got, DefaultCellSize)
		}
	}
}
