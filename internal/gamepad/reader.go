// Package gamepad reads a physical controller through SDL3 and turns it into
// robot joystick and camera commands.
package gamepad

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/jupiterrider/purego-sdl3/sdl"
	"github.com/rs/zerolog"
)

const (
	deadzone    = 0.05
	pollDelayNS = 16_000_000 // ~60Hz
)

var ErrSDLInit = errors.New("gamepad: SDL init failed")

type joystickInfo struct {
	joystick *sdl.Joystick
	mapping  *DeviceMapping
	name     string
}

// Reader polls the first connected joystick and emits its state on change.
// All fields are owned by the goroutine running Run.
type Reader struct {
	state     State
	joysticks map[sdl.JoystickID]*joystickInfo
	activeID  sdl.JoystickID
	hasActive bool
	out       stateSender
	log       zerolog.Logger
}

func NewReader(log zerolog.Logger) *Reader {
	return &Reader{
		joysticks: make(map[sdl.JoystickID]*joystickInfo),
		out:       stateSender{ch: make(chan State, 64)},
		log:       log.With().Str("component", "gamepad").Logger(),
	}
}

// Changes returns the channel on which state changes are sent. It is closed
// when Run returns.
func (r *Reader) Changes() <-chan State {
	return r.out.ch
}

// Run initializes SDL and polls until ctx is cancelled. SDL calls stay on
// the locked OS thread of the calling goroutine.
func (r *Reader) Run(ctx context.Context) error {
	defer close(r.out.ch)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		return fmt.Errorf("%w: %s", ErrSDLInit, sdl.GetError())
	}
	defer sdl.Quit()

	r.log.Info().Msg("SDL3 joystick subsystem initialized")

	for _, id := range sdl.GetJoysticks() {
		r.openJoystick(id)
	}

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		default:
		}

		r.out.flush()
		r.processEvents()
		r.pollState()
		sdl.DelayNS(pollDelayNS)
	}
}

func (r *Reader) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			r.openJoystick(event.JDevice().Which)
		case sdl.EventJoystickRemoved:
			r.removeJoystick(event.JDevice().Which)
		case sdl.EventJoystickButtonDown:
			be := event.JButton()
			r.log.Trace().Int("button", int(be.Button)).Uint32("joystick", uint32(be.Which)).Msg("Button down")
		case sdl.EventJoystickHatMotion:
			he := event.JHat()
			r.log.Trace().Int("hat", int(he.Value)).Uint32("joystick", uint32(he.Which)).Msg("Hat motion")
		}
	}
}

func (r *Reader) openJoystick(instanceID sdl.JoystickID) {
	if _, exists := r.joysticks[instanceID]; exists {
		return
	}

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		r.log.Warn().Uint32("joystick", uint32(instanceID)).Str("sdlError", sdl.GetError()).Msg("Failed to open joystick")
		return
	}

	jsID := sdl.GetJoystickID(js)
	vendorID := sdl.GetJoystickVendor(js)
	productID := sdl.GetJoystickProduct(js)
	name := sdl.GetJoystickName(js)
	mapping := GetMapping(vendorID, productID)

	r.joysticks[jsID] = &joystickInfo{joystick: js, mapping: mapping, name: name}

	r.log.Info().
		Str("name", name).
		Str("vid", fmt.Sprintf("%04X", vendorID)).
		Str("pid", fmt.Sprintf("%04X", productID)).
		Str("mapping", mapping.Name).
		Msg("Joystick connected")

	if !r.hasActive {
		r.activate(jsID)
	}
}

func (r *Reader) activate(id sdl.JoystickID) {
	info := r.joysticks[id]
	r.activeID = id
	r.hasActive = true
	r.log.Info().Str("name", info.name).Msg("Active joystick set")

	r.state = State{Connected: true, Name: info.name, ControllerType: info.mapping.Name}
	r.emitState()
}

func (r *Reader) removeJoystick(instanceID sdl.JoystickID) {
	info, exists := r.joysticks[instanceID]
	if !exists {
		return
	}

	r.log.Info().Str("name", info.name).Msg("Joystick disconnected")
	sdl.CloseJoystick(info.joystick)
	delete(r.joysticks, instanceID)

	if !r.hasActive || r.activeID != instanceID {
		return
	}
	r.hasActive = false
	for id, js := range r.joysticks {
		if sdl.JoystickConnected(js.joystick) {
			r.activate(id)
			return
		}
	}

	// Disconnected state carries a zero stick, which releases any drag.
	r.state = State{}
	r.emitState()
}

func (r *Reader) closeAll() {
	for id, info := range r.joysticks {
		sdl.CloseJoystick(info.joystick)
		delete(r.joysticks, id)
	}
}

func (r *Reader) pollState() {
	if !r.hasActive {
		return
	}

	info, exists := r.joysticks[r.activeID]
	if !exists || !sdl.JoystickConnected(info.joystick) {
		return
	}

	js := info.joystick
	m := info.mapping
	state := State{Connected: true, ControllerType: m.Name, Name: info.name}

	// No inversion here: the stick is treated like a screen drag and
	// flipped once by joystick.FromScreen.
	state.Stick.X = ApplyDeadzone(NormalizeAxis(sdl.GetJoystickAxis(js, m.Axes[axisLeftX])), deadzone)
	state.Stick.Y = ApplyDeadzone(NormalizeAxis(sdl.GetJoystickAxis(js, m.Axes[axisLeftY])), deadzone)

	numButtons := sdl.GetNumJoystickButtons(js)
	pressed := func(t buttonTarget) bool {
		idx, ok := m.Buttons[t]
		return ok && idx < numButtons && sdl.GetJoystickButton(js, idx)
	}
	state.Buttons = Buttons{A: pressed(buttonA), Start: pressed(buttonStart)}

	if m.HasHat && sdl.GetNumJoystickHats(js) > 0 {
		state.Dpad = dpadFromHat(sdl.GetJoystickHat(js, 0))
	}

	if !Changed(r.state, state) {
		return
	}
	r.state = state
	r.emitState()
}

func (r *Reader) emitState() {
	if !r.out.send(r.state) {
		r.log.Debug().Msg("Consumer is behind, gamepad state held for retry")
	}
}
