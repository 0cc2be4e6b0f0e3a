package hub

import (
	"time"

	"github.com/safem8/controller/internal/alert"
	"github.com/safem8/controller/internal/joystick"
	"github.com/safem8/controller/internal/monitor"
)

// Server to client message types.
const (
	TypeFull     = "full"
	TypeDelta    = "delta"
	TypeEvent    = "event"
	TypeJoystick = "joystick"
	TypeCamera   = "camera"
	TypeError    = "error"
)

// Client to server message types.
const (
	TypeGesture          = "gesture"
	TypeAckNotifications = "ack_notifications"
)

// Gesture phases sent by the control panel.
const (
	PhaseStart   = "start"
	PhaseMove    = "move"
	PhaseRelease = "release"
)

const EventAlert = "alert"

// WSMessage is a message sent from server to client.
type WSMessage struct {
	Type      string            `json:"type"`
	Seq       int64             `json:"seq"`       // broadcast order; 0 for per-client replies
	Timestamp int64             `json:"timestamp"` // Unix milliseconds
	Event     string            `json:"event,omitempty"`
	Data      *monitor.Snapshot `json:"data,omitempty"`
	Changes   *monitor.Delta    `json:"changes,omitempty"`
	Joystick  *JoystickFeedback `json:"joystick,omitempty"`
	Camera    *CameraFeedback   `json:"camera,omitempty"`
	Alert     *alert.Alert      `json:"alert,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// JoystickFeedback lets the panel draw the handle and label. Handle
// coordinates are the clamped screen offset; DX and DY are what was sent to
// the robot.
type JoystickFeedback struct {
	Phase     string             `json:"phase"`
	HandleX   float64            `json:"handleX"`
	HandleY   float64            `json:"handleY"`
	DX        float64            `json:"dx"`
	DY        float64            `json:"dy"`
	Direction joystick.Direction `json:"direction"`
	Code      int                `json:"code"`
}

type CameraFeedback struct {
	Direction joystick.Direction `json:"direction"`
	Code      int                `json:"code"`
}

func now() int64 { return time.Now().UnixMilli() }

func NewFullMessage(seq int64, snap *monitor.Snapshot) *WSMessage {
	return &WSMessage{Type: TypeFull, Seq: seq, Timestamp: now(), Data: snap}
}

func NewDeltaMessage(seq int64, changes *monitor.Delta) *WSMessage {
	return &WSMessage{Type: TypeDelta, Seq: seq, Timestamp: now(), Changes: changes}
}

func NewAlertMessage(seq int64, a alert.Alert) *WSMessage {
	return &WSMessage{Type: TypeEvent, Seq: seq, Timestamp: now(), Event: EventAlert, Alert: &a}
}

func NewJoystickMessage(fb JoystickFeedback) *WSMessage {
	return &WSMessage{Type: TypeJoystick, Timestamp: now(), Joystick: &fb}
}

func NewCameraMessage(c joystick.CameraCommand) *WSMessage {
	return &WSMessage{Type: TypeCamera, Timestamp: now(), Camera: &CameraFeedback{Direction: c.Direction, Code: c.Code}}
}

func NewErrorMessage(err error) *WSMessage {
	return &WSMessage{Type: TypeError, Timestamp: now(), Error: err.Error()}
}

// ClientMessage is a message sent from the control panel.
type ClientMessage struct {
	Type      string  `json:"type"`
	Phase     string  `json:"phase,omitempty"`
	DX        float64 `json:"dx,omitempty"`
	DY        float64 `json:"dy,omitempty"`
	Direction string  `json:"direction,omitempty"`
}
