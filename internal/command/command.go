// Package command relays joystick and camera commands to the robot's
// real-time channel. Writes are fire-and-forget: a failed write is logged and
// dropped because the next frame supersedes it.
package command

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/safem8/controller/internal/joystick"
)

const (
	JoystickKey = "joystick"
	CameraKey   = "cameraDirection"

	defaultTimeout = 5 * time.Second
)

// Writer stores a JSON-serializable value at a logical key.
type Writer interface {
	Set(ctx context.Context, key string, value any) error
}

// JoystickPayload is the wire shape written to JoystickKey.
type JoystickPayload struct {
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
	Direction int     `json:"direction"`
}

// CameraPayload is the wire shape written to CameraKey.
type CameraPayload struct {
	Cdirection int `json:"Cdirection"`
}

func NewJoystickPayload(c joystick.Command) JoystickPayload {
	return JoystickPayload{DX: c.DX, DY: c.DY, Direction: c.Code}
}

func NewCameraPayload(c joystick.CameraCommand) CameraPayload {
	return CameraPayload{Cdirection: c.Code}
}

// Dispatcher sends commands without blocking the caller.
type Dispatcher struct {
	w       Writer
	ctx     context.Context
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	sent    metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

// NewDispatcher binds in-flight writes to ctx; cancelling it abandons them.
func NewDispatcher(ctx context.Context, w Writer, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := &Dispatcher{
		w:       w,
		ctx:     ctx,
		timeout: timeout,
		log:     log.With().Str("component", "command").Logger(),
	}
	d.sent, _ = meter().Int64Counter("commands.sent",
		metric.WithDescription("Commands written to the real-time channel"))
	d.failed, _ = meter().Int64Counter("commands.failed",
		metric.WithDescription("Command writes that returned an error"))
	d.dropped, _ = meter().Int64Counter("commands.dropped",
		metric.WithDescription("Commands rejected after the dispatcher closed"))
	return d
}

// Joystick sends a joystick frame.
func (d *Dispatcher) Joystick(c joystick.Command) {
	d.send(JoystickKey, NewJoystickPayload(c))
}

// Camera sends a camera direction press.
func (d *Dispatcher) Camera(c joystick.CameraCommand) {
	d.send(CameraKey, NewCameraPayload(c))
}

// Wait blocks until every write issued so far has returned. It must not run
// concurrently with new sends; use Close at shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close rejects further commands, waits for in-flight writes and then writes
// final synchronously, so it is the last joystick frame the robot sees.
func (d *Dispatcher) Close(final joystick.Command) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	d.write(JoystickKey, NewJoystickPayload(final))
}

func (d *Dispatcher) send(key string, payload any) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", key)))
		d.log.Debug().Str("key", key).Msg("Command dropped, dispatcher closed")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.write(key, payload)
	}()
}

func (d *Dispatcher) write(key string, payload any) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	attrs := metric.WithAttributes(attribute.String("key", key))
	if err := d.w.Set(ctx, key, payload); err != nil {
		d.failed.Add(context.Background(), 1, attrs)
		d.log.Warn().Err(err).Str("key", key).Msg("Error sending command")
		return
	}
	d.sent.Add(context.Background(), 1, attrs)
	d.log.Trace().Str("key", key).Interface("payload", payload).Msg("Command sent")
}
