package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"nan gravity", func(s *Settings) { s.Gravity = mgl64.Vec2{math.NaN(), 0} }},
		{"zero timestep", func(s *Settings) { s.TimeStep = 0 }},
		{"negative duration", func(s *Settings) { s.Duration = -1 }},
		{"zero fps", func(s *Settings) { s.TargetFPS = 0 }},
		{"fps too high", func(s *Settings) { s.TargetFPS = 1001 }},
		{"zero velocity iterations", func(s *Settings) { s.VelocityIterations = 0 }},
		{"negative position iterations", func(s *Settings) { s.PositionIterations = -1 }},
		{"zero workers", func(s *Settings) { s.Workers = 0 }},
		{"zero cell size", func(s *Settings) { s.CellSize = 0 }},
		{"zero density", func(s *Settings) { s.Density = 0 }},
		{"negative friction", func(s *Settings) { s.Friction = -0.1 }},
		{"negative restitution", func(s *Settings) { s.Restitution = -0.1 }},
		{"no bodies", func(s *Settings) { s.BodiesCount = 0 }},
		{"unknown scene", func(s *Settings) { s.SceneType = "pendulum" }},
		{"zero stats interval", func(s *Settings) { s.StatsInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"engine.json", "engine.yaml", "nested/dir/engine.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := Default()
			want.Gravity = mgl64.Vec2{1, -20}
			want.Workers = 3
			want.SceneType = "wall"
			want.Seed = 42
			want.Sleeping = false

			if err := want.Save(path); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("Load = %+v, want %+v", got, want)
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if got != Default() {
		t.Errorf("Load(missing) = %+v, want defaults", got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("workers: 2\nscene_type: rain\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Workers = 2
	want.SceneType = "rain"
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Load(malformed) returned no error")
	}

	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"workers": 0}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load(invalid) = %v, want ErrInvalidConfig", err)
	}
}

func TestNewWorldAppliesSettings(t *testing.T) {
	s := Default()
	s.Gravity = mgl64.Vec2{0, -3}
	s.VelocityIterations = 12
	s.PositionIterations = 5
	s.Workers = 1
	w := s.NewWorld()
	defer w.Close()

	if w.Gravity() != s.Gravity {
		t.Errorf("gravity = %v, want %v", w.Gravity(), s.Gravity)
	}
	if w.VelocityIterations() != 12 || w.PositionIterations() != 5 || w.Workers() != 1 {
		t.Errorf("iterations %d/%d workers %d", w.VelocityIterations(), w.PositionIterations(), w.Workers())
	}
}
