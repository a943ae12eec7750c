// Package scene loads scene descriptions from JSON or YAML files, builds
// them into a world and generates procedural test scenes.
package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/0x5844/rigid2d/breakable"
	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/shape"
)

var (
	// ErrUnknownShape is returned for a shape kind other than circle, box
	// or polygon.
	ErrUnknownShape = errors.New("scene: unknown shape")
	// ErrUnknownScene is returned by Generate for an unknown scene type.
	ErrUnknownScene = errors.New("scene: unknown scene type")
)

// File is a scene description.
type File struct {
	Gravity    *mgl64.Vec2    `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	Duration   float64        `json:"duration,omitempty" yaml:"duration,omitempty"`
	Bodies     []BodyDef      `json:"bodies" yaml:"bodies"`
	Breakables []BreakableDef `json:"breakables,omitempty" yaml:"breakables,omitempty"`
}

// BodyDef describes one body and its fixtures.
type BodyDef struct {
	Type            string       `json:"type,omitempty" yaml:"type,omitempty"`
	Position        mgl64.Vec2   `json:"position" yaml:"position"`
	Angle           float64      `json:"angle,omitempty" yaml:"angle,omitempty"`
	Velocity        mgl64.Vec2   `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	AngularVelocity float64      `json:"angular_velocity,omitempty" yaml:"angular_velocity,omitempty"`
	LinearDamping   float64      `json:"linear_damping,omitempty" yaml:"linear_damping,omitempty"`
	AngularDamping  float64      `json:"angular_damping,omitempty" yaml:"angular_damping,omitempty"`
	FixedRotation   bool         `json:"fixed_rotation,omitempty" yaml:"fixed_rotation,omitempty"`
	Fixtures        []FixtureDef `json:"fixtures" yaml:"fixtures"`
}

// FixtureDef describes a fixture. Unset materials take the fixture
// defaults.
type FixtureDef struct {
	Shape       ShapeDef         `json:"shape" yaml:"shape"`
	Density     *float64         `json:"density,omitempty" yaml:"density,omitempty"`
	Friction    *float64         `json:"friction,omitempty" yaml:"friction,omitempty"`
	Restitution *float64         `json:"restitution,omitempty" yaml:"restitution,omitempty"`
	Sensor      bool             `json:"sensor,omitempty" yaml:"sensor,omitempty"`
	Filter      *dynamics.Filter `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// ShapeDef describes a shape in body coordinates. Boxes use full width and
// height.
type ShapeDef struct {
	Kind     string       `json:"kind" yaml:"kind"`
	Radius   float64      `json:"radius,omitempty" yaml:"radius,omitempty"`
	Center   mgl64.Vec2   `json:"center,omitempty" yaml:"center,omitempty"`
	Width    float64      `json:"width,omitempty" yaml:"width,omitempty"`
	Height   float64      `json:"height,omitempty" yaml:"height,omitempty"`
	Angle    float64      `json:"angle,omitempty" yaml:"angle,omitempty"`
	Vertices []mgl64.Vec2 `json:"vertices,omitempty" yaml:"vertices,omitempty"`
}

// BreakableDef describes a breakable body made of convex parts.
type BreakableDef struct {
	Position    mgl64.Vec2     `json:"position" yaml:"position"`
	Density     float64        `json:"density" yaml:"density"`
	Strength    float64        `json:"strength" yaml:"strength"`
	Friction    *float64       `json:"friction,omitempty" yaml:"friction,omitempty"`
	Restitution *float64       `json:"restitution,omitempty" yaml:"restitution,omitempty"`
	Parts       [][]mgl64.Vec2 `json:"parts" yaml:"parts"`
}

// Shape builds the shape.
func (d ShapeDef) Shape() (*shape.Shape, error) {
	switch strings.ToLower(d.Kind) {
	case "circle":
		return shape.NewCircle(d.Radius, d.Center)
	case "box":
		return shape.NewOrientedBox(d.Width/2, d.Height/2, d.Center, d.Angle)
	case "polygon":
		return shape.NewPolygon(d.Vertices)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownShape, d.Kind)
}

func (d FixtureDef) options() []dynamics.FixtureOption {
	var opts []dynamics.FixtureOption
	if d.Density != nil {
		opts = append(opts, dynamics.WithDensity(*d.Density))
	}
	if d.Friction != nil {
		opts = append(opts, dynamics.WithFriction(*d.Friction))
	}
	if d.Restitution != nil {
		opts = append(opts, dynamics.WithRestitution(*d.Restitution))
	}
	if d.Sensor {
		opts = append(opts, dynamics.WithSensor(true))
	}
	if d.Filter != nil {
		opts = append(opts, dynamics.WithFilter(*d.Filter))
	}
	return opts
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads a scene file. The format is chosen by extension: .yaml
// and .yml are YAML, anything else JSON.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	var f File
	if isYAML(path) {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("scene: parse %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the scene as JSON or YAML, chosen by extension.
func (f *File) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(f)
	} else {
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("scene: encode: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Result holds what Build created, in file order.
type Result struct {
	Bodies     []*dynamics.Body
	Breakables []*breakable.Body
}

// Build creates the scene's bodies and breakables in w and applies its
// gravity. It stops at the first invalid definition; objects created
// before it stay in the world.
func (f *File) Build(w *dynamics.World) (*Result, error) {
	if f.Gravity != nil {
		w.SetGravity(*f.Gravity)
	}
	res := &Result{}
	for i, def := range f.Bodies {
		b, err := def.build(w)
		if err != nil {
			return res, fmt.Errorf("scene: body %d: %w", i, err)
		}
		res.Bodies = append(res.Bodies, b)
	}
	for i, def := range f.Breakables {
		var opts []dynamics.FixtureOption
		if def.Friction != nil {
			opts = append(opts, dynamics.WithFriction(*def.Friction))
		}
		if def.Restitution != nil {
			opts = append(opts, dynamics.WithRestitution(*def.Restitution))
		}
		bb, err := breakable.New(w, def.Parts, def.Density, def.Strength, def.Position, opts...)
		if err != nil {
			return res, fmt.Errorf("scene: breakable %d: %w", i, err)
		}
		res.Breakables = append(res.Breakables, bb)
	}
	return res, nil
}

func (d BodyDef) build(w *dynamics.World) (*dynamics.Body, error) {
	typ, err := dynamics.ParseBodyType(strings.ToLower(d.Type))
	if err != nil {
		return nil, err
	}
	shapes := make([]*shape.Shape, 0, len(d.Fixtures))
	for j, fd := range d.Fixtures {
		s, err := fd.Shape.Shape()
		if err != nil {
			return nil, fmt.Errorf("fixture %d: %w", j, err)
		}
		shapes = append(shapes, s)
	}

	b, err := w.CreateBody(typ, d.Position, d.Angle)
	if err != nil {
		return nil, err
	}
	for j, fd := range d.Fixtures {
		if _, err := b.CreateFixture(shapes[j], nil, fd.options()...); err != nil {
			return nil, errors.Join(fmt.Errorf("fixture %d: %w", j, err), w.DestroyBody(b))
		}
	}
	b.SetLinearDamping(d.LinearDamping)
	b.SetAngularDamping(d.AngularDamping)
	b.SetFixedRotation(d.FixedRotation)
	b.SetLinearVelocity(d.Velocity)
	b.SetAngularVelocity(d.AngularVelocity)
	return b, nil
}

// Capture describes the live bodies of w as a scene. Breakable bodies are
// captured as plain bodies.
func Capture(w *dynamics.World) *File {
	g := w.Gravity()
	f := &File{Gravity: &g}
	for _, b := range w.Bodies() {
		def := BodyDef{
			Type:            b.Type().String(),
			Position:        b.Position(),
			Angle:           b.Angle(),
			Velocity:        b.LinearVelocity(),
			AngularVelocity: b.AngularVelocity(),
			LinearDamping:   b.LinearDamping(),
			AngularDamping:  b.AngularDamping(),
			FixedRotation:   b.IsFixedRotation(),
		}
		for _, fx := range b.Fixtures() {
			density, friction, restitution := fx.Density(), fx.Friction(), fx.Restitution()
			filter := fx.Filter()
			fd := FixtureDef{
				Density:     &density,
				Friction:    &friction,
				Restitution: &restitution,
				Sensor:      fx.IsSensor(),
			}
			if filter != dynamics.DefaultFilter() {
				fd.Filter = &filter
			}
			s := fx.Shape()
			switch s.Kind {
			case shape.KindCircle:
				fd.Shape = ShapeDef{Kind: "circle", Radius: s.Radius, Center: s.Center}
			default:
				fd.Shape = ShapeDef{Kind: "polygon", Vertices: append([]mgl64.Vec2(nil), s.Vertices...)}
			}
			def.Fixtures = append(def.Fixtures, fd)
		}
		f.Bodies = append(f.Bodies, def)
	}
	return f
}
