package joystick

import (
	"errors"
	"math"
)

const (
	PadRadius    = 80
	HandleRadius = 30
	// DefaultMaxDrag is the travel limit of the handle inside the pad.
	DefaultMaxDrag = PadRadius - HandleRadius
)

var ErrInvalidRadius = errors.New("max drag radius must be positive")

// Vector is a logical 2D vector with Y growing upward.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FromScreen converts a screen-space offset (Y grows downward) into a logical
// vector (Y grows upward). It is the only place the vertical axis is flipped.
func FromScreen(dx, dy float64) Vector {
	return Vector{X: dx, Y: -dy}
}

// Clamp constrains (dx, dy) to a circle of maxRadius, preserving its angle.
func Clamp(dx, dy, maxRadius float64) (float64, float64) {
	d := math.Hypot(dx, dy)
	if d == 0 {
		return 0, 0
	}
	if d <= maxRadius {
		return dx, dy
	}
	scale := maxRadius / d
	return dx * scale, dy * scale
}

// Normalize rescales a clamped vector to a percentage of maxRadius, rounded to
// one decimal place.
func Normalize(cx, cy, maxRadius float64) (float64, float64) {
	return percent(cx, maxRadius), percent(cy, maxRadius)
}

func percent(v, maxRadius float64) float64 {
	p := math.Round(v/maxRadius*100*10) / 10
	if p == 0 {
		// drop the sign of -0 from a flipped zero axis
		return 0
	}
	// fp noise on the boundary circle can overshoot by an ulp
	return math.Max(-100, math.Min(100, p))
}

// DragVector is the result of mapping one touch-move event.
type DragVector struct {
	RawDX     float64 `json:"rawDx"`
	RawDY     float64 `json:"rawDy"`
	ClampedDX float64 `json:"clampedDx"` // screen space, for drawing the handle
	ClampedDY float64 `json:"clampedDy"`
	NormDX    float64 `json:"dx"` // logical, percent of max radius
	NormDY    float64 `json:"dy"`
}

// Normalized returns the logical normalized vector.
func (d DragVector) Normalized() Vector {
	return Vector{X: d.NormDX, Y: d.NormDY}
}

// Mapper turns raw screen drags into bounded, normalized vectors.
type Mapper struct {
	MaxRadius float64
}

func NewMapper(maxRadius float64) (Mapper, error) {
	if !(maxRadius > 0) || math.IsInf(maxRadius, 1) {
		return Mapper{}, ErrInvalidRadius
	}
	return Mapper{MaxRadius: maxRadius}, nil
}

// DefaultMapper uses the pad geometry of the control panel.
func DefaultMapper() Mapper {
	return Mapper{MaxRadius: DefaultMaxDrag}
}

// Map clamps the raw screen offset, flips it into logical space and normalizes it.
func (m Mapper) Map(rawDX, rawDY float64) DragVector {
	cx, cy := Clamp(rawDX, rawDY, m.MaxRadius)
	logical := FromScreen(cx, cy)
	nx, ny := Normalize(logical.X, logical.Y, m.MaxRadius)
	return DragVector{
		RawDX:     rawDX,
		RawDY:     rawDY,
		ClampedDX: cx,
		ClampedDY: cy,
		NormDX:    nx,
		NormDY:    ny,
	}
}
