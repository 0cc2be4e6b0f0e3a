package gamepad

import "math"

// Stick is an analog stick position in -1..1 per axis, in screen
// orientation: +X right, +Y down.
type Stick struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s Stick) IsZero() bool { return s.X == 0 && s.Y == 0 }

// Buttons holds the face buttons the robot uses: A presses camera center,
// Start stops the robot.
type Buttons struct {
	A     bool `json:"a"`
	Start bool `json:"start"`
}

type Dpad struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

type State struct {
	Connected      bool    `json:"connected"`
	ControllerType string  `json:"controllerType"`
	Name           string  `json:"name"`
	Stick          Stick   `json:"stick"`
	Buttons        Buttons `json:"buttons"`
	Dpad           Dpad    `json:"dpad"`
}

const analogThreshold = 0.01

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < analogThreshold
}

// Changed reports whether new_ differs from old enough to be emitted.
// A stick returning exactly to rest always counts so the bridge sees the
// release.
func Changed(old, new_ State) bool {
	if old.Connected != new_.Connected ||
		old.ControllerType != new_.ControllerType ||
		old.Name != new_.Name ||
		old.Buttons != new_.Buttons ||
		old.Dpad != new_.Dpad {
		return true
	}
	if old.Stick.IsZero() != new_.Stick.IsZero() {
		return true
	}
	return !floatEqual(old.Stick.X, new_.Stick.X) || !floatEqual(old.Stick.Y, new_.Stick.Y)
}

// stateSender delivers states on a buffered channel without blocking the
// poll loop. When the consumer is behind, the newest state is kept and
// retried by flush, so a release or disconnect is never lost.
type stateSender struct {
	ch      chan State
	last    State
	pending bool
}

func (s *stateSender) send(st State) bool {
	s.last = st
	s.pending = true
	return s.flush()
}

// flush retries a pending state and reports whether nothing is left pending.
func (s *stateSender) flush() bool {
	if !s.pending {
		return true
	}
	select {
	case s.ch <- s.last:
		s.pending = false
		return true
	default:
		return false
	}
}
