package joystick

import (
	"errors"
	"fmt"
	"math"
)

// Direction is the fixed compass vocabulary shared by the joystick and the camera buttons.
type Direction int

const (
	Center Direction = iota
	Up
	Down
	Right
	Left
)

var ErrInvalidDirection = errors.New("invalid direction")

func (d Direction) String() string {
	switch d {
	case Center:
		return "center"
	case Up:
		return "up"
	case Down:
		return "down"
	case Right:
		return "right"
	case Left:
		return "left"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection maps a label onto the closed Direction set.
func ParseDirection(label string) (Direction, error) {
	switch label {
	case "center":
		return Center, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "right":
		return Right, nil
	case "left":
		return Left, nil
	}
	return Center, fmt.Errorf("%w: %q", ErrInvalidDirection, label)
}

func (d Direction) MarshalText() ([]byte, error) {
	if d < Center || d > Left {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Classification is the discrete direction of a joystick vector.
type Classification struct {
	Direction Direction `json:"direction"`
	Code      int       `json:"code"`
}

// JoystickCode is the code the robot expects on the joystick key.
func JoystickCode(d Direction) int {
	switch d {
	case Up:
		return 1
	case Down:
		return 2
	case Right:
		return 3
	case Left:
		return 4
	default:
		return 0
	}
}

// CameraCode is the code the robot expects on the camera direction key. The
// table is independent of JoystickCode even though the values currently agree.
func CameraCode(d Direction) int {
	switch d {
	case Up:
		return 1
	case Down:
		return 2
	case Right:
		return 3
	case Left:
		return 4
	default:
		return 0
	}
}

// Classify sorts a logical normalized vector into one of the five directions.
// Sectors are half-open and evaluated in order; the zero vector is Center.
func Classify(nx, ny float64) Classification {
	d := classify(nx, ny)
	return Classification{Direction: d, Code: JoystickCode(d)}
}

func classify(nx, ny float64) Direction {
	if nx == 0 && ny == 0 {
		return Center
	}
	angle := math.Atan2(ny, nx) * 180 / math.Pi
	switch {
	case angle >= 45 && angle < 135:
		return Up
	case angle >= -135 && angle < -45:
		return Down
	case angle >= -45 && angle < 45:
		return Right
	case (angle >= 135 && angle <= 180) || (angle >= -180 && angle < -135):
		return Left
	}
	return Center
}

// ResolveCameraCode looks up the camera code for a button label. Unknown labels
// are rejected rather than mapped to center.
func ResolveCameraCode(label string) (int, error) {
	d, err := ParseDirection(label)
	if err != nil {
		return 0, err
	}
	return CameraCode(d), nil
}

// CameraCommand is sent on every camera button press.
type CameraCommand struct {
	Direction Direction
	Code      int
}

func NewCameraCommand(label string) (CameraCommand, error) {
	d, err := ParseDirection(label)
	if err != nil {
		return CameraCommand{}, err
	}
	return CameraCommandFor(d), nil
}

func CameraCommandFor(d Direction) CameraCommand {
	return CameraCommand{Direction: d, Code: CameraCode(d)}
}
