package viewer

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/shape"
)

func testWorld(t *testing.T) *dynamics.World {
	t.Helper()
	w := dynamics.NewWorld(mgl64.Vec2{0, -10})

	ground, err := w.CreateBody(dynamics.StaticBody, mgl64.Vec2{0, -1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	box, _ := shape.NewBox(5, 1)
	if _, err := ground.CreateFixture(box, nil); err != nil {
		t.Fatal(err)
	}

	ball, err := w.CreateBody(dynamics.DynamicBody, mgl64.Vec2{0, 3}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	circle, _ := shape.NewCircle(0.5, mgl64.Vec2{})
	if _, err := ball.CreateFixture(circle, nil, dynamics.WithSensor(true)); err != nil {
		t.Fatal(err)
	}
	ball.SetLinearVelocity(mgl64.Vec2{1, 0})
	return w
}

func TestCapture(t *testing.T) {
	s := Capture(testWorld(t))
	if s.Type != MessageTypeSnapshot || s.Gravity != (mgl64.Vec2{0, -10}) {
		t.Errorf("type %q gravity %v", s.Type, s.Gravity)
	}
	if len(s.Bodies) != 2 || s.Stats.Bodies != 2 {
		t.Fatalf("bodies = %d, stats %d", len(s.Bodies), s.Stats.Bodies)
	}

	ground, ball := s.Bodies[0], s.Bodies[1]
	if ground.Type != "static" || ground.Awake || len(ground.Shapes) != 1 {
		t.Errorf("ground = %+v", ground)
	}
	if sh := ground.Shapes[0]; sh.Kind != "polygon" || len(sh.Vertices) != 4 {
		t.Errorf("ground shape = %+v", sh)
	}
	if ball.Type != "dynamic" || !ball.Awake || ball.Angle != 0.5 || ball.Velocity != (mgl64.Vec2{1, 0}) {
		t.Errorf("ball = %+v", ball)
	}
	if sh := ball.Shapes[0]; sh.Kind != "circle" || sh.Radius != 0.5 || !sh.Sensor {
		t.Errorf("ball shape = %+v", sh)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", typ)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubStreamsSnapshots(t *testing.T) {
	hub := NewHub(WithPingInterval(time.Hour))
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	w := testWorld(t)
	if err := hub.Publish(Capture(w)); err != nil {
		t.Fatal(err)
	}

	conn := dial(t, srv)
	first := readSnapshot(t, conn)
	if len(first.Bodies) != 2 || first.Stats.Steps != 0 {
		t.Fatalf("first snapshot: %d bodies, step %d", len(first.Bodies), first.Stats.Steps)
	}
	if hub.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", hub.Clients())
	}

	if err := w.Step(1.0 / 60.0); err != nil {
		t.Fatal(err)
	}
	if err := hub.Publish(Capture(w)); err != nil {
		t.Fatal(err)
	}
	second := readSnapshot(t, conn)
	if second.Stats.Steps != 1 {
		t.Errorf("second snapshot step = %d, want 1", second.Stats.Steps)
	}
	if second.Bodies[1].Position[1] >= first.Bodies[1].Position[1] {
		t.Errorf("ball did not fall: %v -> %v", first.Bodies[1].Position, second.Bodies[1].Position)
	}
}

func TestHubTracksDisconnects(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	if err := hub.Publish(Capture(testWorld(t))); err != nil {
		t.Fatal(err)
	}
	a, b := dial(t, srv), dial(t, srv)
	readSnapshot(t, a)
	readSnapshot(t, b)
	if hub.Clients() != 2 {
		t.Fatalf("clients = %d, want 2", hub.Clients())
	}

	_ = a.Close()
	waitFor(t, "disconnect", func() bool { return hub.Clients() == 1 })
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	if err := hub.Publish(Capture(testWorld(t))); err != nil {
		t.Fatal(err)
	}
	conn := dial(t, srv)
	readSnapshot(t, conn)

	if err := hub.Close(); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after Close succeeded")
	}
	if err := hub.Publish(Snapshot{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
	if err := hub.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
