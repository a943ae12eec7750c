package debugdraw

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/shape"
)

func addBox(t *testing.T, w *dynamics.World, typ dynamics.BodyType, pos mgl64.Vec2, h float64) *dynamics.Body {
	t.Helper()
	b, err := w.CreateBody(typ, pos, 0)
	if err != nil {
		t.Fatal(err)
	}
	s, err := shape.NewBox(h, h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreateFixture(s, nil); err != nil {
		t.Fatal(err)
	}
	return b
}

func newRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	r, err := New(100, 100, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNewRejectsBadSize(t *testing.T) {
	for _, size := range [][2]int{{0, 10}, {10, 0}, {-1, -1}} {
		if _, err := New(size[0], size[1]); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("New(%d, %d) error = %v, want ErrInvalidSize", size[0], size[1], err)
		}
	}
}

func TestToScreen(t *testing.T) {
	r := newRenderer(t, WithHUD(false), WithScale(10), WithCenter(mgl64.Vec2{1, 1}))
	tests := []struct {
		world  mgl64.Vec2
		sx, sy float32
	}{
		{mgl64.Vec2{1, 1}, 50, 50},
		{mgl64.Vec2{2, 1}, 60, 50},
		{mgl64.Vec2{1, 2}, 50, 40},
		{mgl64.Vec2{-4, -4}, 0, 100},
	}
	for _, tt := range tests {
		x, y := r.ToScreen(tt.world)
		if x != tt.sx || y != tt.sy {
			t.Errorf("ToScreen(%v) = (%v, %v), want (%v, %v)", tt.world, x, y, tt.sx, tt.sy)
		}
	}
}

func TestRenderEmptyWorld(t *testing.T) {
	r := newRenderer(t, WithHUD(false))
	img := r.Render(dynamics.NewWorld(mgl64.Vec2{}))
	bg := DefaultPalette().Background
	for y := 0; y < 100; y += 7 {
		for x := 0; x < 100; x += 7 {
			if got := img.RGBAAt(x, y); got != bg {
				t.Fatalf("pixel (%d, %d) = %v, want background %v", x, y, got, bg)
			}
		}
	}
}

func TestRenderColorsByBodyType(t *testing.T) {
	w := dynamics.NewWorld(mgl64.Vec2{})
	addBox(t, w, dynamics.DynamicBody, mgl64.Vec2{-2.5, 0}, 1)
	addBox(t, w, dynamics.StaticBody, mgl64.Vec2{2.5, 0}, 1)
	sleeper := addBox(t, w, dynamics.DynamicBody, mgl64.Vec2{0, 3}, 1)
	sleeper.SetAwake(false)

	r := newRenderer(t, WithHUD(false), WithScale(10))
	img := r.Render(w)
	p := DefaultPalette()

	tests := []struct {
		name string
		at   mgl64.Vec2
		want color.RGBA
	}{
		{"dynamic", mgl64.Vec2{-2.5, 0}, p.Dynamic},
		{"static", mgl64.Vec2{2.5, 0}, p.Static},
		{"sleeping", mgl64.Vec2{0, 3}, p.Sleeping},
		{"empty", mgl64.Vec2{0, -4}, p.Background},
	}
	for _, tt := range tests {
		x, y := r.ToScreen(tt.at)
		if got := img.RGBAAt(int(x), int(y)); got != tt.want {
			t.Errorf("%s pixel = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFit(t *testing.T) {
	w := dynamics.NewWorld(mgl64.Vec2{})
	addBox(t, w, dynamics.DynamicBody, mgl64.Vec2{100, 100}, 1)
	addBox(t, w, dynamics.DynamicBody, mgl64.Vec2{110, 100}, 1)

	r := newRenderer(t, WithHUD(false))
	r.Fit(w)
	if c := r.Center(); !geom.ApproxEqual(c, mgl64.Vec2{105, 100}, 1e-6) {
		t.Errorf("center = %v, want (105, 100)", c)
	}
	for _, p := range []mgl64.Vec2{{99, 99}, {111, 101}} {
		x, y := r.ToScreen(p)
		if x < 0 || x > 100 || y < 0 || y > 100 {
			t.Errorf("%v maps off screen to (%v, %v)", p, x, y)
		}
	}

	img := r.Render(w)
	x, y := r.ToScreen(mgl64.Vec2{100, 100})
	if got := img.RGBAAt(int(x), int(y)); got != DefaultPalette().Dynamic {
		t.Errorf("fitted body pixel = %v", got)
	}

	empty := newRenderer(t, WithHUD(false), WithScale(3))
	empty.Fit(dynamics.NewWorld(mgl64.Vec2{}))
	if empty.Scale() != 3 || empty.Center() != (mgl64.Vec2{}) {
		t.Error("Fit on an empty world changed the view")
	}
}

func TestHUDDrawsText(t *testing.T) {
	w := dynamics.NewWorld(mgl64.Vec2{})
	plain := newRenderer(t, WithHUD(false)).Render(w)
	withHUD := newRenderer(t).Render(w)

	changed := 0
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			if plain.RGBAAt(x, y) != withHUD.RGBAAt(x, y) {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Error("HUD left the top of the image unchanged")
	}
}

func TestOverlays(t *testing.T) {
	w := dynamics.NewWorld(mgl64.Vec2{0, -10})
	addBox(t, w, dynamics.StaticBody, mgl64.Vec2{0, -1}, 1)
	addBox(t, w, dynamics.DynamicBody, mgl64.Vec2{0, 0.9}, 1)
	if err := w.Step(1.0 / 60.0); err != nil {
		t.Fatal(err)
	}

	base := newRenderer(t, WithHUD(false)).Render(w)
	overlay := newRenderer(t, WithHUD(false), WithAABBs(true), WithContacts(true)).Render(w)
	if bytes.Equal(base.Pix, overlay.Pix) {
		t.Error("AABB and contact overlays drew nothing")
	}
}

func TestSavePNG(t *testing.T) {
	w := dynamics.NewWorld(mgl64.Vec2{})
	addBox(t, w, dynamics.DynamicBody, mgl64.Vec2{}, 1)
	r := newRenderer(t)

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := r.SavePNG(path, w); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 100, 100) {
		t.Errorf("bounds = %v", img.Bounds())
	}

	if err := r.SavePNG(filepath.Join(t.TempDir(), "missing", "frame.png"), w); err == nil {
		t.Error("SavePNG into a missing directory returned no error")
	}
}
