// Package viewer streams world snapshots to browsers over WebSocket.
//
// The simulation loop captures a Snapshot after each step it wants to show
// and publishes it to a Hub. Clients receive every published snapshot as a
// JSON text message; a new client first receives the latest one.
package viewer

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/rigid2d/dynamics"
	"github.com/0x5844/rigid2d/shape"
)

// MessageTypeSnapshot tags snapshot messages.
const MessageTypeSnapshot = "snapshot"

// ShapeState is a fixture's shape in body coordinates.
type ShapeState struct {
	Kind     string       `json:"kind"`
	Radius   float64      `json:"radius,omitempty"`
	Center   mgl64.Vec2   `json:"center"`
	Vertices []mgl64.Vec2 `json:"vertices,omitempty"`
	Sensor   bool         `json:"sensor,omitempty"`
}

// BodyState is a body's pose and shapes.
type BodyState struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Awake    bool         `json:"awake"`
	Position mgl64.Vec2   `json:"position"`
	Angle    float64      `json:"angle"`
	Velocity mgl64.Vec2   `json:"velocity"`
	Shapes   []ShapeState `json:"shapes"`
}

// Snapshot is the state of a world at one step.
type Snapshot struct {
	Type    string         `json:"type"`
	Gravity mgl64.Vec2     `json:"gravity"`
	Stats   dynamics.Stats `json:"stats"`
	Bodies  []BodyState    `json:"bodies"`
}

// Capture records the current state of w. It must not run concurrently
// with w.Step.
func Capture(w *dynamics.World) Snapshot {
	bodies := w.Bodies()
	s := Snapshot{
		Type:    MessageTypeSnapshot,
		Gravity: w.Gravity(),
		Stats:   w.Stats(),
		Bodies:  make([]BodyState, 0, len(bodies)),
	}
	for _, b := range bodies {
		bs := BodyState{
			ID:       b.ID().String(),
			Type:     b.Type().String(),
			Awake:    b.IsAwake(),
			Position: b.Position(),
			Angle:    b.Angle(),
			Velocity: b.LinearVelocity(),
		}
		for _, f := range b.Fixtures() {
			sh := f.Shape()
			ss := ShapeState{Kind: sh.Kind.String(), Sensor: f.IsSensor()}
			if sh.Kind == shape.KindCircle {
				ss.Radius = sh.Radius
				ss.Center = sh.Center
			} else {
				ss.Center = sh.Centroid
				ss.Vertices = append([]mgl64.Vec2(nil), sh.Vertices...)
			}
			bs.Shapes = append(bs.Shapes, ss)
		}
		s.Bodies = append(s.Bodies, bs)
	}
	return s
}
