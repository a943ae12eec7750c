package scene

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/config"
	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/shape"
)

const dt = 1.0 / 60.0

const sceneYAML = `
gravity: [0, -5]
duration: 3
bodies:
  - type: static
    position: [0, -1]
    fixtures:
      - shape: {kind: box, width: 40, height: 2}
        friction: 0.8
  - position: [0, 4]
    angle: 0.25
    velocity: [1, 0]
    fixed_rotation: true
    fixtures:
      - shape: {kind: circle, radius: 0.5}
        density: 2
        restitution: 0.4
      - shape:
          kind: polygon
          vertices: [[0, 0], [1, 0], [0, 1]]
        sensor: true
        filter: {category: 2, mask: 1, group: 0}
breakables:
  - position: [5, 2]
    density: 1
    strength: 20
    parts:
      - [[-1, -0.5], [0, -0.5], [0, 0.5], [-1, 0.5]]
      - [[0, -0.5], [1, -0.5], [1, 0.5], [0, 0.5]]
`

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndBuild(t *testing.T) {
	f, err := LoadFile(writeFile(t, "scene.yaml", sceneYAML))
	if err != nil {
		t.Fatal(err)
	}
	if f.Duration != 3 || len(f.Bodies) != 2 || len(f.Breakables) != 1 {
		t.Fatalf("parsed %+v", f)
	}

	w := dynamics.NewWorld(mgl64.Vec2{0, -10})
	res, err := f.Build(w)
	if err != nil {
		t.Fatal(err)
	}
	if w.Gravity() != (mgl64.Vec2{0, -5}) {
		t.Errorf("gravity = %v, want (0, -5)", w.Gravity())
	}
	if len(res.Bodies) != 2 || len(res.Breakables) != 1 || w.BodyCount() != 3 {
		t.Fatalf("built %d bodies, %d breakables, world has %d", len(res.Bodies), len(res.Breakables), w.BodyCount())
	}

	ground := res.Bodies[0]
	if ground.Type() != dynamics.StaticBody || ground.Fixtures()[0].Friction() != 0.8 {
		t.Errorf("ground type %v friction %v", ground.Type(), ground.Fixtures()[0].Friction())
	}
	if got := ground.Fixtures()[0].AABB(); got.Max[0] < 20 || got.Max[1] < 0 {
		t.Errorf("ground AABB %v too small", got)
	}

	b := res.Bodies[1]
	if b.Type() != dynamics.DynamicBody || b.Angle() != 0.25 || !b.IsFixedRotation() {
		t.Errorf("body type %v angle %v fixed %v", b.Type(), b.Angle(), b.IsFixedRotation())
	}
	if b.LinearVelocity() != (mgl64.Vec2{1, 0}) {
		t.Errorf("velocity = %v", b.LinearVelocity())
	}
	fx := b.Fixtures()
	if len(fx) != 2 {
		t.Fatalf("fixtures = %d, want 2", len(fx))
	}
	if fx[0].Density() != 2 || fx[0].Restitution() != 0.4 || fx[0].Friction() != dynamics.DefaultFriction {
		t.Errorf("circle material %v/%v/%v", fx[0].Density(), fx[0].Friction(), fx[0].Restitution())
	}
	if !fx[1].IsSensor() || fx[1].Filter() != (dynamics.Filter{Category: 2, Mask: 1}) {
		t.Errorf("polygon sensor %v filter %+v", fx[1].IsSensor(), fx[1].Filter())
	}

	bb := res.Breakables[0]
	if len(bb.Parts()) != 2 || bb.Strength() != 20 || bb.MainBody().Position() != (mgl64.Vec2{5, 2}) {
		t.Errorf("breakable parts %d strength %v position %v", len(bb.Parts()), bb.Strength(), bb.MainBody().Position())
	}

	for i := 0; i < 30; i++ {
		w.UpdateControllers()
		if err := w.Step(dt); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "scene.json", `{
		"bodies": [
			{"type": "kinematic", "position": [1, 2], "fixtures": [{"shape": {"kind": "box", "width": 2, "height": 1, "angle": 0.5}}]}
		]
	}`)
	f, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Gravity != nil {
		t.Errorf("gravity = %v, want unset", *f.Gravity)
	}
	w := dynamics.NewWorld(mgl64.Vec2{0, -10})
	res, err := f.Build(w)
	if err != nil {
		t.Fatal(err)
	}
	if w.Gravity() != (mgl64.Vec2{0, -10}) {
		t.Errorf("gravity changed to %v", w.Gravity())
	}
	if res.Bodies[0].Type() != dynamics.KinematicBody {
		t.Errorf("type = %v", res.Bodies[0].Type())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := LoadFile(writeFile(t, "bad.json", "{")); err == nil {
		t.Error("malformed JSON accepted")
	}
	if _, err := LoadFile(writeFile(t, "bad.yml", "bodies: [")); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		file File
		want error
	}{
		{
			name: "unknown shape",
			file: File{Bodies: []BodyDef{{Fixtures: []FixtureDef{{Shape: ShapeDef{Kind: "star"}}}}}},
			want: ErrUnknownShape,
		},
		{
			name: "unknown body type",
			file: File{Bodies: []BodyDef{{Type: "floating"}}},
			want: dynamics.ErrInvalidArgument,
		},
		{
			name: "bad radius",
			file: File{Bodies: []BodyDef{{Fixtures: []FixtureDef{{Shape: ShapeDef{Kind: "circle", Radius: -1}}}}}},
			want: shape.ErrInvalidGeometry,
		},
		{
			name: "weak breakable",
			file: File{Breakables: []BreakableDef{{Density: 1, Parts: [][]mgl64.Vec2{{{0, 0}, {1, 0}, {0, 1}}}}}},
			want: dynamics.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := dynamics.NewWorld(mgl64.Vec2{})
			if _, err := tt.file.Build(w); !errors.Is(err, tt.want) {
				t.Errorf("Build error = %v, want %v", err, tt.want)
			}
			if w.BodyCount() != 0 {
				t.Errorf("failed build left %d bodies", w.BodyCount())
			}
		})
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	f, err := LoadFile(writeFile(t, "scene.yaml", sceneYAML))
	if err != nil {
		t.Fatal(err)
	}
	f.Breakables = nil
	w := dynamics.NewWorld(mgl64.Vec2{})
	if _, err := f.Build(w); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"capture.json", "capture.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Capture(w).Save(path); err != nil {
				t.Fatal(err)
			}
			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			w2 := dynamics.NewWorld(mgl64.Vec2{0, -10})
			res, err := loaded.Build(w2)
			if err != nil {
				t.Fatal(err)
			}
			if w2.Gravity() != w.Gravity() {
				t.Errorf("gravity = %v, want %v", w2.Gravity(), w.Gravity())
			}
			orig := w.Bodies()
			if len(res.Bodies) != len(orig) {
				t.Fatalf("bodies = %d, want %d", len(res.Bodies), len(orig))
			}
			for i, b := range res.Bodies {
				o := orig[i]
				if b.Type() != o.Type() || b.Position() != o.Position() || b.Angle() != o.Angle() {
					t.Errorf("body %d: %v at %v/%v, want %v at %v/%v", i, b.Type(), b.Position(), b.Angle(), o.Type(), o.Position(), o.Angle())
				}
				if b.Mass() != o.Mass() {
					t.Errorf("body %d mass = %v, want %v", i, b.Mass(), o.Mass())
				}
				bf, of := b.Fixtures(), o.Fixtures()
				if len(bf) != len(of) {
					t.Fatalf("body %d fixtures = %d, want %d", i, len(bf), len(of))
				}
				for j := range bf {
					if !bf[j].Shape().Equal(of[j].Shape(), 1e-12) {
						t.Errorf("body %d fixture %d shape differs", i, j)
					}
					if bf[j].Filter() != of[j].Filter() || bf[j].IsSensor() != of[j].IsSensor() {
						t.Errorf("body %d fixture %d filter/sensor differs", i, j)
					}
				}
			}
		})
	}
}

func TestGenerateEverySceneType(t *testing.T) {
	for _, kind := range config.SceneTypes {
		t.Run(kind, func(t *testing.T) {
			w := dynamics.NewWorld(mgl64.Vec2{0, -9.81})
			res, err := Generate(w, kind, 20, 1, DefaultMaterial())
			if err != nil {
				t.Fatal(err)
			}
			dynamicBodies := 0
			for _, b := range w.Bodies() {
				if b.Type() == dynamics.DynamicBody {
					dynamicBodies++
				}
			}
			if dynamicBodies == 0 {
				t.Fatal("scene has no dynamic bodies")
			}
			if kind == "wall" && len(res.Breakables) != 5 {
				t.Errorf("wall breakables = %d, want 5", len(res.Breakables))
			}
			for i := 0; i < 10; i++ {
				w.UpdateControllers()
				if err := w.Step(dt); err != nil {
					t.Fatal(err)
				}
			}
		})
	}
}

func TestGeneratePyramidSize(t *testing.T) {
	w := dynamics.NewWorld(mgl64.Vec2{0, -9.81})
	res, err := Generate(w, "pyramid", 9, 0, DefaultMaterial())
	if err != nil {
		t.Fatal(err)
	}
	// ground plus levels 4+3+2+1
	if len(res.Bodies) != 11 {
		t.Errorf("bodies = %d, want 11", len(res.Bodies))
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	positions := func(seed int64) []mgl64.Vec2 {
		w := dynamics.NewWorld(mgl64.Vec2{})
		res, err := Generate(w, "mixed", 30, seed, DefaultMaterial())
		if err != nil {
			t.Fatal(err)
		}
		var out []mgl64.Vec2
		for _, b := range res.Bodies {
			out = append(out, b.Position())
		}
		return out
	}
	a, b, c := positions(7), positions(7), positions(8)
	if len(a) != len(b) {
		t.Fatalf("lengths %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("body %d: %v != %v with the same seed", i, a[i], b[i])
		}
	}
	same := len(a) == len(c)
	for i := 0; same && i < len(a); i++ {
		same = a[i] == c[i]
	}
	if same {
		t.Error("different seeds produced the same scene")
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	w := dynamics.NewWorld(mgl64.Vec2{})
	if _, err := Generate(w, "pendulum", 10, 0, DefaultMaterial()); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("unknown scene error = %v", err)
	}
	if _, err := Generate(w, "rain", 0, 0, DefaultMaterial()); !errors.Is(err, dynamics.ErrInvalidArgument) {
		t.Errorf("zero count error = %v", err)
	}
	if w.BodyCount() != 0 {
		t.Errorf("rejected input created %d bodies", w.BodyCount())
	}
}
