package scene

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/breakable"
	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/shape"
)

// Material is the default fixture material of generated bodies.
type Material struct {
	Density     float64
	Friction    float64
	Restitution float64
}

// DefaultMaterial matches the fixture defaults.
func DefaultMaterial() Material {
	return Material{Density: dynamics.DefaultDensity, Friction: dynamics.DefaultFriction}
}

// WallStrength is the breaking impulse of the blocks in the wall scene.
const WallStrength = 50.0

type generator struct {
	w   *dynamics.World
	rng *rand.Rand
	mat Material
	res *Result
}

// Generate builds a procedural scene of the given kind with roughly count
// dynamic bodies. The same seed produces the same scene.
func Generate(w *dynamics.World, kind string, count int, seed int64, mat Material) (*Result, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: body count %d", dynamics.ErrInvalidArgument, count)
	}
	g := &generator{
		w:   w,
		rng: rand.New(rand.NewSource(seed)),
		mat: mat,
		res: &Result{},
	}

	var err error
	switch kind {
	case "default":
		err = g.defaultScene(count)
	case "pyramid":
		err = g.pyramid(count)
	case "rain":
		err = g.rain(count)
	case "container":
		err = g.container(count)
	case "mixed":
		err = g.mixed(count)
	case "wall":
		err = g.wall(count)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, kind)
	}
	if err != nil {
		return g.res, fmt.Errorf("scene: %s: %w", kind, err)
	}
	return g.res, nil
}

func (g *generator) fixtureOptions() []dynamics.FixtureOption {
	return []dynamics.FixtureOption{
		dynamics.WithDensity(g.mat.Density),
		dynamics.WithFriction(g.mat.Friction),
		dynamics.WithRestitution(g.mat.Restitution),
	}
}

func (g *generator) add(typ dynamics.BodyType, pos mgl64.Vec2, s *shape.Shape, opts ...dynamics.FixtureOption) (*dynamics.Body, error) {
	b, err := g.w.CreateBody(typ, pos, 0)
	if err != nil {
		return nil, err
	}
	if _, err := b.CreateFixture(s, nil, append(g.fixtureOptions(), opts...)...); err != nil {
		return nil, err
	}
	g.res.Bodies = append(g.res.Bodies, b)
	return b, nil
}

// box adds a width by height box; static boxes get no mass.
func (g *generator) box(typ dynamics.BodyType, pos mgl64.Vec2, width, height float64, opts ...dynamics.FixtureOption) (*dynamics.Body, error) {
	s, err := shape.NewBox(width/2, height/2)
	if err != nil {
		return nil, err
	}
	return g.add(typ, pos, s, opts...)
}

func (g *generator) circle(pos mgl64.Vec2, radius float64, opts ...dynamics.FixtureOption) (*dynamics.Body, error) {
	s, err := shape.NewCircle(radius, mgl64.Vec2{})
	if err != nil {
		return nil, err
	}
	return g.add(dynamics.DynamicBody, pos, s, opts...)
}

func (g *generator) ground(pos mgl64.Vec2, width, height float64) error {
	_, err := g.box(dynamics.StaticBody, pos, width, height)
	return err
}

func (g *generator) defaultScene(count int) error {
	if err := g.ground(mgl64.Vec2{0, -50}, 200, 10); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		pos := mgl64.Vec2{(g.rng.Float64() - 0.5) * 150, g.rng.Float64()*50 + 50}
		var err error
		if g.rng.Float64() < 0.6 {
			_, err = g.circle(pos, g.rng.Float64()*2+1)
		} else {
			size := g.rng.Float64()*3 + 1
			_, err = g.box(dynamics.DynamicBody, pos, size, size)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) pyramid(count int) error {
	if err := g.ground(mgl64.Vec2{0, -2.5}, 200, 5); err != nil {
		return err
	}
	levels := int(math.Sqrt(float64(count))) + 1
	const size = 1.0
	y := size / 2
	for level := levels; level > 0; level-- {
		left := -float64(level-1) * size / 2
		for i := 0; i < level; i++ {
			pos := mgl64.Vec2{left + float64(i)*size, y}
			if _, err := g.box(dynamics.DynamicBody, pos, size, size); err != nil {
				return err
			}
		}
		y += size
	}
	return nil
}

func (g *generator) rain(count int) error {
	for _, b := range []struct {
		pos  mgl64.Vec2
		w, h float64
	}{
		{mgl64.Vec2{0, -50}, 300, 10},
		{mgl64.Vec2{-150, 0}, 10, 100},
		{mgl64.Vec2{150, 0}, 10, 100},
	} {
		if err := g.ground(b.pos, b.w, b.h); err != nil {
			return err
		}
	}
	for i := 0; i < count; i++ {
		pos := mgl64.Vec2{(g.rng.Float64() - 0.5) * 250, g.rng.Float64()*200 + 100}
		var err error
		if g.rng.Float64() < 0.7 {
			_, err = g.circle(pos, g.rng.Float64()*2+0.5)
		} else {
			_, err = g.box(dynamics.DynamicBody, pos, g.rng.Float64()*3+1, g.rng.Float64()*3+1)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) container(count int) error {
	const (
		thickness = 5.0
		width     = 100.0
		height    = 80.0
	)
	walls := []struct {
		pos  mgl64.Vec2
		w, h float64
	}{
		{mgl64.Vec2{0, -height / 2}, width, thickness},
		{mgl64.Vec2{-width / 2, 0}, thickness, height},
		{mgl64.Vec2{width / 2, 0}, thickness, height},
	}
	for _, b := range walls {
		if err := g.ground(b.pos, b.w, b.h); err != nil {
			return err
		}
	}

	light := dynamics.WithDensity(g.mat.Density * 0.5)
	for i := 0; i < count; i++ {
		pos := mgl64.Vec2{(g.rng.Float64() - 0.5) * (width - 20), g.rng.Float64()*60 - 20}
		var err error
		if g.rng.Float64() < 0.6 {
			_, err = g.circle(pos, g.rng.Float64()*1.5+0.5, light)
		} else {
			size := g.rng.Float64()*2 + 1
			_, err = g.box(dynamics.DynamicBody, pos, size, size, light)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) mixed(count int) error {
	if err := g.ground(mgl64.Vec2{-75, -50}, 50, 10); err != nil {
		return err
	}
	if err := g.ground(mgl64.Vec2{75, -50}, 50, 10); err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		pos := mgl64.Vec2{(g.rng.Float64() - 0.5) * 150, float64(i)*15 - 20}
		if err := g.ground(pos, g.rng.Float64()*30+20, 3); err != nil {
			return err
		}
	}

	for i := 0; i < count; i++ {
		pos := mgl64.Vec2{(g.rng.Float64() - 0.5) * 200, g.rng.Float64()*100 + 50}
		var err error
		switch g.rng.Intn(3) {
		case 0:
			radius := g.rng.Float64()*2 + 0.5
			_, err = g.circle(pos, radius,
				dynamics.WithRestitution(g.rng.Float64()*0.5+0.5),
				dynamics.WithFriction(g.rng.Float64()*0.5+0.2))
		case 1:
			size := g.rng.Float64()*3 + 1
			_, err = g.box(dynamics.DynamicBody, pos, size, size,
				dynamics.WithRestitution(g.rng.Float64()*0.5+0.3),
				dynamics.WithFriction(g.rng.Float64()*0.6+0.3))
		case 2:
			_, err = g.box(dynamics.DynamicBody, pos, g.rng.Float64()*4+1, g.rng.Float64()*2+0.5,
				dynamics.WithRestitution(g.rng.Float64()*0.4+0.4),
				dynamics.WithFriction(g.rng.Float64()*0.5+0.4))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// blockParts splits a 2x2 block into four unit squares.
func blockParts() [][]mgl64.Vec2 {
	parts := make([][]mgl64.Vec2, 0, 4)
	for _, c := range []mgl64.Vec2{{-0.5, -0.5}, {0.5, -0.5}, {-0.5, 0.5}, {0.5, 0.5}} {
		parts = append(parts, []mgl64.Vec2{
			c.Add(mgl64.Vec2{-0.5, -0.5}),
			c.Add(mgl64.Vec2{0.5, -0.5}),
			c.Add(mgl64.Vec2{0.5, 0.5}),
			c.Add(mgl64.Vec2{-0.5, 0.5}),
		})
	}
	return parts
}

// wall stacks breakable blocks and fires cannonballs at them. Each block
// counts as four bodies.
func (g *generator) wall(count int) error {
	if err := g.ground(mgl64.Vec2{0, -5}, 200, 10); err != nil {
		return err
	}

	blocks := max(1, count/4)
	columns := max(1, int(math.Sqrt(float64(blocks))))
	opts := []dynamics.FixtureOption{
		dynamics.WithFriction(g.mat.Friction),
		dynamics.WithRestitution(g.mat.Restitution),
	}
	for i := 0; i < blocks; i++ {
		col, row := i%columns, i/columns
		pos := mgl64.Vec2{float64(col)*2 + 1 - float64(columns), float64(row)*2 + 1}
		bb, err := breakable.New(g.w, blockParts(), g.mat.Density, WallStrength, pos, opts...)
		if err != nil {
			return err
		}
		g.res.Breakables = append(g.res.Breakables, bb)
	}

	balls := max(1, count/20)
	for i := 0; i < balls; i++ {
		pos := mgl64.Vec2{-float64(columns) - 30 - float64(i)*5, g.rng.Float64()*10 + 2}
		ball, err := g.circle(pos, 1, dynamics.WithDensity(g.mat.Density*5))
		if err != nil {
			return err
		}
		ball.SetLinearVelocity(mgl64.Vec2{30 + g.rng.Float64()*10, 5})
	}
	return nil
}
