package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/shape"
)

func fallingWorld(t *testing.T) (*dynamics.World, *dynamics.Body) {
	t.Helper()
	w := dynamics.NewWorld(mgl64.Vec2{0, -10})
	b, err := w.CreateBody(dynamics.DynamicBody, mgl64.Vec2{0, 10}, 0)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := shape.NewCircle(0.5, mgl64.Vec2{})
	if _, err := b.CreateFixture(s, nil); err != nil {
		t.Fatal(err)
	}
	return w, b
}

type countingController struct{ n int }

func (c *countingController) Update() { c.n++ }

func TestRunStopsAfterMaxFrames(t *testing.T) {
	w, b := fallingWorld(t)
	ctrl := &countingController{}
	w.AddController(ctrl)

	hooks := 0
	e := New(w,
		WithTargetFPS(500),
		WithTimeStep(1.0/60.0),
		WithMaxFrames(10),
		WithHistorySize(4),
		WithOnStep(func(*dynamics.World) error { hooks++; return nil }))

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v", err)
	}

	st := e.Stats()
	if st.Frames != 10 || st.World.Steps != 10 {
		t.Errorf("frames %d steps %d, want 10", st.Frames, st.World.Steps)
	}
	if hooks != 10 || ctrl.n != 10 {
		t.Errorf("hooks %d controller updates %d, want 10", hooks, ctrl.n)
	}
	if !(st.MinFrameTime <= st.AvgFrameTime && st.AvgFrameTime <= st.MaxFrameTime) {
		t.Errorf("frame times min %v avg %v max %v out of order", st.MinFrameTime, st.AvgFrameTime, st.MaxFrameTime)
	}
	if st.FPS <= 0 {
		t.Errorf("fps = %v", st.FPS)
	}
	if got := len(e.FrameHistory()); got != 4 {
		t.Errorf("history length = %d, want 4", got)
	}
	if b.Position()[1] >= 10 {
		t.Errorf("body did not fall: %v", b.Position())
	}
}

func TestRunReturnsContextError(t *testing.T) {
	w, _ := fallingWorld(t)
	e := New(w, WithTargetFPS(200))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want DeadlineExceeded", err)
	}
	if e.Stats().Frames == 0 {
		t.Error("no frames ran before the deadline")
	}
}

func TestRunStopsOnHookError(t *testing.T) {
	w, _ := fallingWorld(t)
	boom := errors.New("boom")
	e := New(w, WithTargetFPS(500), WithOnStep(func(w *dynamics.World) error {
		if w.Stats().Steps == 3 {
			return boom
		}
		return nil
	}))
	if err := e.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want hook error", err)
	}
	if w.Stats().Steps != 3 {
		t.Errorf("steps = %d, want 3", w.Stats().Steps)
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	w, _ := fallingWorld(t)
	started := make(chan struct{})
	e := New(w, WithTargetFPS(200), WithOnStep(func(*dynamics.World) error {
		select {
		case <-started:
		default:
			close(started)
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	<-started

	if err := e.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Errorf("second Run = %v, want ErrRunning", err)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("first Run = %v, want Canceled", err)
	}
}

func TestDefaults(t *testing.T) {
	w, _ := fallingWorld(t)
	e := New(w, WithTargetFPS(0), WithTimeStep(-1))
	if e.TimeStep() != 1.0/60.0 {
		t.Errorf("time step = %v, want 1/60", e.TimeStep())
	}
	if e.World() != w {
		t.Error("World returned a different world")
	}
}
