package gamepad

import "math"

type axisTarget int

const (
	axisLeftX axisTarget = iota
	axisLeftY
)

type buttonTarget int

const (
	buttonA buttonTarget = iota
	buttonStart
)

// DeviceMapping maps raw SDL joystick indices to the controls the robot
// uses. Axes are read as SDL reports them (down is positive on Y), which is
// the same orientation as a screen drag.
type DeviceMapping struct {
	Name    string
	Axes    map[axisTarget]int32
	Buttons map[buttonTarget]int32
	HasHat  bool
}

// NormalizeAxis converts a raw axis value (-32768..32767) to -1.0..1.0.
func NormalizeAxis(raw int16) float64 {
	return max(float64(raw)/math.MaxInt16, -1.0)
}

// ApplyDeadzone returns 0 if the value is within the deadzone threshold.
func ApplyDeadzone(v float64, threshold float64) float64 {
	if math.Abs(v) < threshold {
		return 0
	}
	return v
}

var leftStick = map[axisTarget]int32{axisLeftX: 0, axisLeftY: 1}

var xboxMapping = &DeviceMapping{
	Name:    "xbox",
	Axes:    leftStick,
	Buttons: map[buttonTarget]int32{buttonA: 0, buttonStart: 7},
	HasHat:  true,
}

var playstationMapping = &DeviceMapping{
	Name: "playstation",
	Axes: leftStick,
	// Cross, Options
	Buttons: map[buttonTarget]int32{buttonA: 0, buttonStart: 6},
	HasHat:  true,
}

var switchProMapping = &DeviceMapping{
	Name:    "switch_pro",
	Axes:    leftStick,
	Buttons: map[buttonTarget]int32{buttonA: 0, buttonStart: 7},
	HasHat:  true,
}

var genericMapping = &DeviceMapping{
	Name:    "generic",
	Axes:    leftStick,
	Buttons: map[buttonTarget]int32{buttonA: 0, buttonStart: 7},
	HasHat:  true,
}

type deviceKey struct {
	VendorID  uint16
	ProductID uint16
}

var knownDevices = map[deviceKey]*DeviceMapping{
	{0x045E, 0x028E}: xboxMapping, // Xbox 360
	{0x045E, 0x02FF}: xboxMapping, // Xbox One
	{0x045E, 0x0B12}: xboxMapping, // Xbox Series X|S
	{0x045E, 0x0B13}: xboxMapping,
	{0x054C, 0x0CE6}: playstationMapping, // DualSense
	{0x054C, 0x09CC}: playstationMapping, // DualShock 4
	{0x054C, 0x05C4}: playstationMapping,
	{0x057E, 0x2009}: switchProMapping,
}

// GetMapping returns the mapping for a vendor/product pair, or the generic
// one.
func GetMapping(vendorID, productID uint16) *DeviceMapping {
	if m, ok := knownDevices[deviceKey{VendorID: vendorID, ProductID: productID}]; ok {
		return m
	}
	return genericMapping
}

const (
	hatUp    uint8 = 0x01
	hatRight uint8 = 0x02
	hatDown  uint8 = 0x04
	hatLeft  uint8 = 0x08
)

func dpadFromHat(hat uint8) Dpad {
	return Dpad{
		Up:    hat&hatUp != 0,
		Right: hat&hatRight != 0,
		Down:  hat&hatDown != 0,
		Left:  hat&hatLeft != 0,
	}
}
