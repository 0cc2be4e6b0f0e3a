package joystick

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Cardinal(t *testing.T) {
	tests := []struct {
		name   string
		nx, ny float64
		want   Direction
		code   int
	}{
		{"right", 100, 0, Right, 3},
		{"up", 0, 100, Up, 1},
		{"left", -100, 0, Left, 4},
		{"down", 0, -100, Down, 2},
		{"zero", 0, 0, Center, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.nx, tc.ny)
			assert.Equal(t, tc.want, got.Direction)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func TestClassify_SectorBoundaries(t *testing.T) {
	tests := []struct {
		deg  float64
		want Direction
	}{
		{45.01, Up},
		{90, Up},
		{134.99, Up},
		{135.01, Left},
		{179.99, Left},
		{-179.99, Left},
		{-134.99, Down},
		{-135.01, Left},
		{-44.99, Right},
		{-45.01, Down},
		{44.99, Right},
	}
	for _, tc := range tests {
		rad := tc.deg * math.Pi / 180
		got := Classify(100*math.Cos(rad), 100*math.Sin(rad))
		assert.Equal(t, tc.want, got.Direction, "angle %v", tc.deg)
	}
}

func TestClassify_DiagonalsFallIntoHalfOpenSectors(t *testing.T) {
	tests := []struct {
		name   string
		nx, ny float64
		want   Direction
	}{
		{"45 opens up", 100, 100, Up},
		{"-45 opens right", 100, -100, Right},
		{"-135 opens down", -100, -100, Down},
		{"135 opens left", -100, 100, Left},
		{"180 is left", -100, 0, Left},
		{"-180 is left", -100, math.Copysign(0, -1), Left},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.nx, tc.ny)
			assert.Equal(t, tc.want, got.Direction)
			assert.Equal(t, JoystickCode(tc.want), got.Code)
		})
	}
}

func TestClassify_NegativeZeroIsCenter(t *testing.T) {
	assert.Equal(t, Center, Classify(math.Copysign(0, -1), 0).Direction)
	assert.Equal(t, Center, Classify(0, math.Copysign(0, -1)).Direction)
}

func TestClassify_NaNIsCenter(t *testing.T) {
	assert.Equal(t, Center, Classify(math.NaN(), 1).Direction)
}

func TestClassify_TotalAndDeterministic(t *testing.T) {
	seen := map[Direction]bool{}
	for x := -100.0; x <= 100; x += 12.5 {
		for y := -100.0; y <= 100; y += 12.5 {
			a := Classify(x, y)
			b := Classify(x, y)
			require.Equal(t, a, b)
			require.Equal(t, JoystickCode(a.Direction), a.Code)
			seen[a.Direction] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestResolveCameraCode(t *testing.T) {
	codes := map[string]int{"center": 0, "up": 1, "down": 2, "right": 3, "left": 4}
	for label, want := range codes {
		got, err := ResolveCameraCode(label)
		require.NoError(t, err)
		assert.Equal(t, want, got, label)
	}
}

func TestResolveCameraCode_UnknownLabelFails(t *testing.T) {
	for _, label := range []string{"bogus", "", "UP", " up"} {
		code, err := ResolveCameraCode(label)
		require.ErrorIs(t, err, ErrInvalidDirection, label)
		assert.Zero(t, code)
	}
}

func TestNewCameraCommand(t *testing.T) {
	c, err := NewCameraCommand("left")
	require.NoError(t, err)
	assert.Equal(t, CameraCommand{Direction: Left, Code: 4}, c)

	_, err = NewCameraCommand("north")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestDirection_Text(t *testing.T) {
	b, err := json.Marshal(struct {
		D Direction `json:"d"`
	}{Down})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"down"}`, string(b))

	var out struct {
		D Direction `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"right"}`), &out))
	assert.Equal(t, Right, out.D)
	assert.Error(t, json.Unmarshal([]byte(`{"d":"sideways"}`), &out))

	_, err = Direction(9).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidDirection)
	assert.Equal(t, "Direction(9)", Direction(9).String())
}
