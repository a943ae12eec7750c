// Package debugdraw renders a world to an image for inspection: filled
// fixtures colored by body state, optional bounding boxes and contact
// points, and a small text overlay with world statistics.
package debugdraw

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/geom"
	"github.com/0x5844/rigid2d/shape"
)

// ErrInvalidSize is returned by New for a non-positive image size.
var ErrInvalidSize = errors.New("debugdraw: image size must be positive")

// circleSegments is the number of edges used to draw a circle.
const circleSegments = 32

// Palette holds the colors used for drawing.
type Palette struct {
	Background color.RGBA
	Static     color.RGBA
	Kinematic  color.RGBA
	Dynamic    color.RGBA
	Sleeping   color.RGBA
	Sensor     color.RGBA
	Outline    color.RGBA
	AABB       color.RGBA
	Contact    color.RGBA
	Text       color.RGBA
}

// DefaultPalette returns the default colors.
func DefaultPalette() Palette {
	return Palette{
		Background: color.RGBA{R: 24, G: 26, B: 32, A: 255},
		Static:     color.RGBA{R: 120, G: 128, B: 120, A: 255},
		Kinematic:  color.RGBA{R: 90, G: 120, B: 220, A: 255},
		Dynamic:    color.RGBA{R: 230, G: 160, B: 70, A: 255},
		Sleeping:   color.RGBA{R: 140, G: 110, B: 80, A: 255},
		Sensor:     color.RGBA{R: 40, G: 110, B: 40, A: 110},
		Outline:    color.RGBA{R: 10, G: 10, B: 10, A: 255},
		AABB:       color.RGBA{R: 200, G: 60, B: 200, A: 255},
		Contact:    color.RGBA{R: 230, G: 40, B: 40, A: 255},
		Text:       color.RGBA{R: 235, G: 235, B: 235, A: 255},
	}
}

// Renderer draws worlds into a fixed-size image. A Renderer is not safe
// for concurrent use.
type Renderer struct {
	width, height int
	scale         float64
	center        mgl64.Vec2
	palette       Palette
	aabbs         bool
	contacts      bool
	hud           bool

	z    *vector.Rasterizer
	face font.Face
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithScale sets the number of pixels per meter. Non-positive values are
// ignored.
func WithScale(pixelsPerMeter float64) Option {
	return func(r *Renderer) {
		if pixelsPerMeter > 0 && !math.IsInf(pixelsPerMeter, 0) {
			r.scale = pixelsPerMeter
		}
	}
}

// WithCenter sets the world point drawn at the middle of the image.
func WithCenter(c mgl64.Vec2) Option {
	return func(r *Renderer) { r.center = c }
}

// WithPalette replaces the colors.
func WithPalette(p Palette) Option {
	return func(r *Renderer) { r.palette = p }
}

// WithAABBs outlines every fixture's bounding box.
func WithAABBs(enabled bool) Option {
	return func(r *Renderer) { r.aabbs = enabled }
}

// WithContacts marks the points of touching contacts.
func WithContacts(enabled bool) Option {
	return func(r *Renderer) { r.contacts = enabled }
}

// WithHUD draws world statistics in the top-left corner. It is on by
// default.
func WithHUD(enabled bool) Option {
	return func(r *Renderer) { r.hud = enabled }
}

// New creates a renderer for width by height images.
func New(width, height int, opts ...Option) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	r := &Renderer{
		width:   width,
		height:  height,
		scale:   10,
		palette: DefaultPalette(),
		hud:     true,
		z:       vector.NewRasterizer(width, height),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.hud {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("debugdraw: parse font: %w", err)
		}
		r.face, err = opentype.NewFace(f, &opentype.FaceOptions{
			Size:    12,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("debugdraw: font face: %w", err)
		}
	}
	return r, nil
}

// Close releases the HUD font.
func (r *Renderer) Close() error {
	if r.face == nil {
		return nil
	}
	err := r.face.Close()
	r.face = nil
	return err
}

// Scale returns the pixels per meter.
func (r *Renderer) Scale() float64 { return r.scale }

// Center returns the world point at the middle of the image.
func (r *Renderer) Center() mgl64.Vec2 { return r.center }

// Fit centers the view on every fixture in w and picks the largest scale
// that shows them all with a small margin. An empty world leaves the view
// unchanged.
func (r *Renderer) Fit(w *dynamics.World) {
	var (
		box   geom.AABB
		found bool
	)
	for _, b := range w.Bodies() {
		for _, f := range b.Fixtures() {
			if !found {
				box, found = f.AABB(), true
				continue
			}
			box = box.Union(f.AABB())
		}
	}
	if !found {
		return
	}
	r.center = box.Center()
	ext := box.Max.Sub(box.Min).Mul(1.1)
	sx := float64(r.width) / math.Max(ext[0], geom.Epsilon)
	sy := float64(r.height) / math.Max(ext[1], geom.Epsilon)
	r.scale = math.Min(sx, sy)
}

// ToScreen maps a world point to image coordinates. The y axis points up
// in the world and down in the image.
func (r *Renderer) ToScreen(p mgl64.Vec2) (x, y float32) {
	d := p.Sub(r.center).Mul(r.scale)
	return float32(float64(r.width)/2 + d[0]), float32(float64(r.height)/2 - d[1])
}

// Render draws w into a new image.
func (r *Renderer) Render(w *dynamics.World) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	r.Draw(dst, w)
	return dst
}

// Draw draws w into dst, clearing it first. dst should be at least the
// renderer's size.
func (r *Renderer) Draw(dst draw.Image, w *dynamics.World) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.palette.Background), image.Point{}, draw.Src)

	for _, b := range w.Bodies() {
		fill := r.bodyColor(b)
		for _, f := range b.Fixtures() {
			c := fill
			if f.IsSensor() {
				c = r.palette.Sensor
			}
			r.drawFixture(dst, b.Transform(), f.Shape(), c)
		}
	}

	if r.aabbs {
		for _, b := range w.Bodies() {
			for _, f := range b.Fixtures() {
				r.strokeAABB(dst, f.AABB(), r.palette.AABB)
			}
		}
	}

	if r.contacts {
		for _, c := range w.Contacts() {
			if !c.IsTouching() {
				continue
			}
			wm := c.WorldManifold()
			for i := 0; i < c.Manifold().PointCount; i++ {
				r.dot(dst, wm.Points[i], 2, r.palette.Contact)
			}
		}
	}

	if r.hud && r.face != nil {
		r.drawHUD(dst, w.Stats())
	}
}

func (r *Renderer) bodyColor(b *dynamics.Body) color.RGBA {
	switch {
	case b.Type() == dynamics.StaticBody:
		return r.palette.Static
	case b.Type() == dynamics.KinematicBody:
		return r.palette.Kinematic
	case !b.IsAwake():
		return r.palette.Sleeping
	}
	return r.palette.Dynamic
}

func (r *Renderer) drawFixture(dst draw.Image, xf geom.Transform, s *shape.Shape, c color.RGBA) {
	switch s.Kind {
	case shape.KindCircle:
		center := xf.Apply(s.Center)
		pts := make([]mgl64.Vec2, circleSegments)
		for i := range pts {
			a := 2 * math.Pi * float64(i) / circleSegments
			pts[i] = center.Add(mgl64.Vec2{math.Cos(a), math.Sin(a)}.Mul(s.Radius))
		}
		r.fillPolygon(dst, pts, c)
		r.strokePolygon(dst, pts, r.palette.Outline)
		// radius line shows the rotation
		r.line(dst, center, center.Add(xf.Q.MulVec(mgl64.Vec2{s.Radius, 0})), r.palette.Outline)
	case shape.KindPolygon:
		pts := make([]mgl64.Vec2, len(s.Vertices))
		for i, v := range s.Vertices {
			pts[i] = xf.Apply(v)
		}
		r.fillPolygon(dst, pts, c)
		r.strokePolygon(dst, pts, r.palette.Outline)
	}
}

func (r *Renderer) fillPolygon(dst draw.Image, pts []mgl64.Vec2, c color.RGBA) {
	if len(pts) < 3 {
		return
	}
	r.z.Reset(r.width, r.height)
	x, y := r.ToScreen(pts[0])
	r.z.MoveTo(x, y)
	for _, p := range pts[1:] {
		x, y = r.ToScreen(p)
		r.z.LineTo(x, y)
	}
	r.z.ClosePath()
	r.z.Draw(dst, r.clip(dst), image.NewUniform(c), image.Point{})
}

// line draws a one pixel wide segment as a thin quad.
func (r *Renderer) line(dst draw.Image, a, b mgl64.Vec2, c color.RGBA) {
	ax, ay := r.ToScreen(a)
	bx, by := r.ToScreen(b)
	dx, dy := bx-ax, by-ay
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l < 1e-3 {
		return
	}
	nx, ny := -dy/l*0.5, dx/l*0.5

	r.z.Reset(r.width, r.height)
	r.z.MoveTo(ax+nx, ay+ny)
	r.z.LineTo(bx+nx, by+ny)
	r.z.LineTo(bx-nx, by-ny)
	r.z.LineTo(ax-nx, ay-ny)
	r.z.ClosePath()
	r.z.Draw(dst, r.clip(dst), image.NewUniform(c), image.Point{})
}

func (r *Renderer) strokePolygon(dst draw.Image, pts []mgl64.Vec2, c color.RGBA) {
	for i := range pts {
		r.line(dst, pts[i], pts[(i+1)%len(pts)], c)
	}
}

func (r *Renderer) strokeAABB(dst draw.Image, box geom.AABB, c color.RGBA) {
	r.strokePolygon(dst, []mgl64.Vec2{
		box.Min,
		{box.Max[0], box.Min[1]},
		box.Max,
		{box.Min[0], box.Max[1]},
	}, c)
}

// dot draws a square of half-size px pixels centered on p.
func (r *Renderer) dot(dst draw.Image, p mgl64.Vec2, px int, c color.RGBA) {
	x, y := r.ToScreen(p)
	rect := image.Rect(int(x)-px, int(y)-px, int(x)+px+1, int(y)+px+1)
	draw.Draw(dst, rect.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

func (r *Renderer) drawHUD(dst draw.Image, s dynamics.Stats) {
	lines := []string{
		fmt.Sprintf("step %d", s.Steps),
		fmt.Sprintf("bodies %d (%d awake)", s.Bodies, s.AwakeBodies),
		fmt.Sprintf("contacts %d (%d touching)", s.Contacts, s.TouchingContacts),
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.palette.Text),
		Face: r.face,
	}
	lineHeight := r.face.Metrics().Height
	y := r.face.Metrics().Ascent + fixed.I(4)
	for _, l := range lines {
		d.Dot = fixed.Point26_6{X: fixed.I(6), Y: y}
		d.DrawString(l)
		y += lineHeight
	}
}

// EncodePNG renders w and writes it as PNG.
func (r *Renderer) EncodePNG(out io.Writer, w *dynamics.World) error {
	return png.Encode(out, r.Render(w))
}

// SavePNG renders w to a PNG file.
func (r *Renderer) SavePNG(path string, w *dynamics.World) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("debugdraw: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return r.EncodePNG(f, w)
}

func (r *Renderer) clip(dst draw.Image) image.Rectangle {
	return dst.Bounds().Intersect(image.Rect(0, 0, r.width, r.height))
}
