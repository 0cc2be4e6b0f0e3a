package gamepad

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/safem8/controller/internal/joystick"
)

// Commander receives the commands produced from controller input.
type Commander interface {
	Joystick(c joystick.Command)
	Camera(c joystick.CameraCommand)
}

// Bridge drives a joystick gesture from the left stick and camera presses
// from the D-pad and the A button. A full stick deflection is a drag of
// exactly the mapper's max radius. Start stops the robot and holds the stick
// off while pressed.
type Bridge struct {
	cmd     Commander
	gesture joystick.Gesture
	prev    State
	log     zerolog.Logger
	moveLog zerolog.Logger
}

// NewBridge creates a bridge. moveLog receives one trace event per stick
// move, so it should be a sampled logger.
func NewBridge(m joystick.Mapper, cmd Commander, log, moveLog zerolog.Logger) *Bridge {
	return &Bridge{
		cmd:     cmd,
		gesture: joystick.NewGesture(m),
		log:     log.With().Str("component", "gamepad-bridge").Logger(),
		moveLog: moveLog.With().Str("component", "gamepad-bridge").Logger(),
	}
}

// Run consumes states until changes is closed or ctx is done. A drag still
// in progress is released on exit.
func (b *Bridge) Run(ctx context.Context, changes <-chan State) {
	defer b.Handle(State{})
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-changes:
			if !ok {
				return
			}
			b.Handle(s)
		}
	}
}

// Handle applies one controller state.
func (b *Bridge) Handle(s State) {
	b.handleStick(s)
	if s.Connected {
		b.handleCamera(s)
	}
	b.prev = s
}

func (b *Bridge) handleStick(s State) {
	stopPressed := s.Connected && s.Buttons.Start && !b.prev.Buttons.Start

	if !s.Connected || s.Stick.IsZero() || s.Buttons.Start {
		if b.gesture.Phase() == joystick.Dragging {
			var c joystick.Command
			b.gesture, c = b.gesture.Release()
			b.log.Debug().Bool("stopButton", s.Buttons.Start).Msg("Stick released")
			b.cmd.Joystick(c)
		} else if stopPressed {
			b.log.Info().Msg("Stop button pressed")
			b.cmd.Joystick(joystick.Stop)
		}
		return
	}

	r := b.gesture.Mapper().MaxRadius
	var c joystick.Command
	b.gesture, c = b.gesture.Move(s.Stick.X*r, s.Stick.Y*r)
	b.moveLog.Trace().
		Float64("dx", c.DX).Float64("dy", c.DY).
		Stringer("direction", c.Direction).
		Msg("Stick moved")
	b.cmd.Joystick(c)
}

func (b *Bridge) handleCamera(s State) {
	presses := []struct {
		now, before bool
		dir         joystick.Direction
	}{
		{s.Dpad.Up, b.prev.Dpad.Up, joystick.Up},
		{s.Dpad.Down, b.prev.Dpad.Down, joystick.Down},
		{s.Dpad.Left, b.prev.Dpad.Left, joystick.Left},
		{s.Dpad.Right, b.prev.Dpad.Right, joystick.Right},
		{s.Buttons.A, b.prev.Buttons.A, joystick.Center},
	}
	for _, p := range presses {
		if p.now && !p.before {
			b.log.Debug().Stringer("direction", p.dir).Msg("Camera press")
			b.cmd.Camera(joystick.CameraCommandFor(p.dir))
		}
	}
}
