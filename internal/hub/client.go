package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/safem8/controller/internal/joystick"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Commander sends robot commands. Calls must not block.
type Commander interface {
	Joystick(c joystick.Command)
	Camera(c joystick.CameraCommand)
}

// Acknowledger clears the unread notification flag.
type Acknowledger interface {
	AcknowledgeNotifications()
}

// Handler carries what a client needs to act on panel input.
type Handler struct {
	Commands      Commander
	Notifications Acknowledger
}

// Client represents a connected WebSocket client. Each client owns one
// gesture, touched only by its read pump.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	gesture joystick.Gesture
	log     zerolog.Logger

	registered chan struct{}
	tracked    bool
}

func NewClient(hub *Hub, conn *websocket.Conn, mapper joystick.Mapper) *Client {
	id := uuid.NewString()
	return &Client{
		id:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		gesture: joystick.NewGesture(mapper),
		log:     hub.log.With().Str("client", id).Logger(),

		registered: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// WritePump sends messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.log.Debug().Err(err).Msg("Write failed")
			break
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// ReadPump reads panel messages until the connection closes. A drag still
// in progress is released so the robot stops.
func (c *Client) ReadPump(h Handler) {
	defer func() {
		if c.gesture.Phase() == joystick.Dragging {
			var stop joystick.Command
			c.gesture, stop = c.gesture.Release()
			h.Commands.Joystick(stop)
			c.log.Info().Msg("Connection lost mid-drag, robot stopped")
		}
		c.hub.Unregister(c)
		c.conn.Close()
		if c.tracked {
			c.hub.pumps.Done()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Error parsing client message")
			c.reply(NewErrorMessage(fmt.Errorf("malformed message: %w", err)))
			continue
		}

		switch msg.Type {
		case TypeGesture:
			c.handleGesture(h, msg)
		case TypeCamera:
			c.handleCamera(h, msg)
		case TypeAckNotifications:
			h.Notifications.AcknowledgeNotifications()
			c.log.Debug().Msg("Notifications acknowledged")
		default:
			c.log.Debug().Str("type", msg.Type).Msg("Ignoring unknown message type")
		}
	}
}

func (c *Client) handleGesture(h Handler, msg ClientMessage) {
	var cmd joystick.Command
	switch msg.Phase {
	case PhaseStart:
		c.gesture = c.gesture.Start()
	case PhaseMove:
		c.gesture, cmd = c.gesture.Move(msg.DX, msg.DY)
		h.Commands.Joystick(cmd)
	case PhaseRelease:
		c.gesture, cmd = c.gesture.Release()
		h.Commands.Joystick(cmd)
	default:
		c.reply(NewErrorMessage(fmt.Errorf("unknown gesture phase %q", msg.Phase)))
		return
	}

	last := c.gesture.Last()
	c.reply(NewJoystickMessage(JoystickFeedback{
		Phase:     msg.Phase,
		HandleX:   last.ClampedDX,
		HandleY:   last.ClampedDY,
		DX:        cmd.DX,
		DY:        cmd.DY,
		Direction: cmd.Direction,
		Code:      cmd.Code,
	}))
}

func (c *Client) handleCamera(h Handler, msg ClientMessage) {
	cc, err := joystick.NewCameraCommand(msg.Direction)
	if err != nil {
		c.log.Warn().Err(err).Msg("Rejected camera press")
		c.reply(NewErrorMessage(err))
		return
	}
	h.Commands.Camera(cc)
	c.reply(NewCameraMessage(cc))
}

func (c *Client) reply(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("type", msg.Type).Msg("Error marshaling reply")
		return
	}
	if !c.hub.Send(c, data) {
		c.log.Debug().Str("type", msg.Type).Msg("Reply dropped")
	}
}
