package gamepad

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safem8/controller/internal/joystick"
)

type recorder struct {
	moves   []joystick.Command
	cameras []joystick.CameraCommand
}

func (r *recorder) Joystick(c joystick.Command)     { r.moves = append(r.moves, c) }
func (r *recorder) Camera(c joystick.CameraCommand) { r.cameras = append(r.cameras, c) }

func newBridge(t *testing.T) (*Bridge, *recorder) {
	t.Helper()
	m, err := joystick.NewMapper(50)
	require.NoError(t, err)
	rec := &recorder{}
	return NewBridge(m, rec, zerolog.Nop(), zerolog.Nop()), rec
}

func connected(x, y float64) State {
	return State{Connected: true, Name: "pad", Stick: Stick{X: x, Y: y}}
}

func TestBridge_StickDownIsLogicalDown(t *testing.T) {
	b, rec := newBridge(t)

	// SDL reports a stick pushed towards the player as positive Y.
	b.Handle(connected(0, 1))

	require.Len(t, rec.moves, 1)
	assert.Equal(t, joystick.Down, rec.moves[0].Direction)
	assert.Equal(t, 2, rec.moves[0].Code)
	assert.Equal(t, 0.0, rec.moves[0].DX)
	assert.Equal(t, -100.0, rec.moves[0].DY)
}

func TestBridge_ScalesByMaxRadius(t *testing.T) {
	b, rec := newBridge(t)

	b.Handle(connected(0.5, 0))

	require.Len(t, rec.moves, 1)
	assert.Equal(t, 50.0, rec.moves[0].DX)
	assert.Equal(t, joystick.Right, rec.moves[0].Direction)
	assert.Equal(t, joystick.Dragging, b.gesture.Phase())
}

func TestBridge_ReleaseOnceWhenStickReturns(t *testing.T) {
	b, rec := newBridge(t)

	b.Handle(connected(-1, 0))
	b.Handle(connected(0, 0))
	b.Handle(connected(0, 0))

	require.Len(t, rec.moves, 2)
	assert.Equal(t, joystick.Left, rec.moves[0].Direction)
	assert.Equal(t, joystick.Stop, rec.moves[1])
	assert.Equal(t, joystick.Idle, b.gesture.Phase())
}

func TestBridge_DisconnectReleases(t *testing.T) {
	b, rec := newBridge(t)

	b.Handle(connected(0, -1))
	b.Handle(State{})

	require.Len(t, rec.moves, 2)
	assert.Equal(t, joystick.Up, rec.moves[0].Direction)
	assert.Equal(t, joystick.Stop, rec.moves[1])
}

func TestBridge_CameraOnRisingEdges(t *testing.T) {
	b, rec := newBridge(t)

	up := connected(0, 0)
	up.Dpad.Up = true
	b.Handle(up)
	b.Handle(up) // held, no repeat

	released := connected(0, 0)
	b.Handle(released)

	left := connected(0, 0)
	left.Dpad.Left = true
	left.Buttons.A = true
	b.Handle(left)

	assert.Empty(t, rec.moves)
	require.Len(t, rec.cameras, 3)
	assert.Equal(t, joystick.CameraCommandFor(joystick.Up), rec.cameras[0])
	assert.Equal(t, joystick.CameraCommand{Direction: joystick.Left, Code: 4}, rec.cameras[1])
	assert.Equal(t, joystick.CameraCommand{Direction: joystick.Center, Code: 0}, rec.cameras[2])
}

func TestBridge_RunReleasesOnClose(t *testing.T) {
	b, rec := newBridge(t)

	ch := make(chan State, 2)
	ch <- connected(1, 0)
	close(ch)
	b.Run(context.Background(), ch)

	require.Len(t, rec.moves, 2)
	assert.Equal(t, joystick.Right, rec.moves[0].Direction)
	assert.Equal(t, joystick.Stop, rec.moves[1])
}

func TestBridge_StartStopsAndHoldsStickOff(t *testing.T) {
	b, rec := newBridge(t)

	b.Handle(connected(1, 0))

	held := connected(1, 0)
	held.Buttons.Start = true
	b.Handle(held)
	b.Handle(held)

	require.Len(t, rec.moves, 2)
	assert.Equal(t, joystick.Right, rec.moves[0].Direction)
	assert.Equal(t, joystick.Stop, rec.moves[1])
	assert.Equal(t, joystick.Idle, b.gesture.Phase())

	// letting go of Start with the stick still pushed resumes driving
	b.Handle(connected(1, 0))
	require.Len(t, rec.moves, 3)
	assert.Equal(t, joystick.Right, rec.moves[2].Direction)
}

func TestBridge_StartWhileIdleSendsStop(t *testing.T) {
	b, rec := newBridge(t)

	idle := connected(0, 0)
	idle.Buttons.Start = true
	b.Handle(idle)
	b.Handle(idle)

	assert.Equal(t, []joystick.Command{joystick.Stop}, rec.moves)
}

func TestBridge_MoveTraceUsesSampledLogger(t *testing.T) {
	m, err := joystick.NewMapper(50)
	require.NoError(t, err)

	var general, moves bytes.Buffer
	sampled := zerolog.New(&moves).Level(zerolog.TraceLevel).Sample(&zerolog.BasicSampler{N: 10})
	b := NewBridge(m, &recorder{}, zerolog.New(&general).Level(zerolog.TraceLevel), sampled)

	for i := 1; i <= 20; i++ {
		b.Handle(connected(float64(i)/20, 0))
	}

	assert.Equal(t, 2, strings.Count(moves.String(), "Stick moved"))
	assert.NotContains(t, general.String(), "Stick moved")
}

func TestStateSender_RetriesLatestState(t *testing.T) {
	s := stateSender{ch: make(chan State, 1)}

	assert.True(t, s.send(connected(1, 0)))
	// buffer full: the release is held, not lost
	assert.False(t, s.send(connected(0, 0)))
	assert.False(t, s.flush())

	assert.Equal(t, connected(1, 0), <-s.ch)
	assert.True(t, s.flush())
	assert.Equal(t, connected(0, 0), <-s.ch)
	assert.True(t, s.flush())
}

func TestStateSender_ReleaseReachesBridge(t *testing.T) {
	b, rec := newBridge(t)
	s := stateSender{ch: make(chan State, 1)}

	s.send(connected(0, -1))
	s.send(connected(0, -0.5))
	s.send(connected(0, 0))

	b.Handle(<-s.ch)
	require.True(t, s.flush())
	b.Handle(<-s.ch)

	require.Len(t, rec.moves, 2)
	assert.Equal(t, joystick.Up, rec.moves[0].Direction)
	assert.Equal(t, joystick.Stop, rec.moves[1])
}
