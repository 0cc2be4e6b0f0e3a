package alert

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreshold(t *testing.T) {
	th := Threshold{Limit: DefaultTemperatureLimit}
	assert.False(t, th.Exceeded(35))
	assert.False(t, th.Exceeded(-4))
	assert.True(t, th.Exceeded(35.01))
	assert.True(t, th.Exceeded(48))
}

func TestNewTemperature(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	a := NewTemperature(36.44, at)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, KindTemperature, a.Kind)
	assert.Equal(t, "Temperature Alert", a.Title)
	assert.Equal(t, "Temperature is high: 36.4°C", a.Body)
	assert.Equal(t, 36.44, a.Value)
	assert.Equal(t, at, a.CreatedAt)

	assert.NotEqual(t, a.ID, NewTemperature(36.44, at).ID)
}

func TestFanout(t *testing.T) {
	var got []string
	ok := NotifierFunc(func(_ context.Context, a Alert) error {
		got = append(got, a.Body)
		return nil
	})
	bad := NotifierFunc(func(context.Context, Alert) error {
		return errors.New("push service unavailable")
	})

	err := Fanout{ok, bad, nil, ok}.Notify(context.Background(), NewTemperature(40, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push service unavailable")
	assert.Len(t, got, 2)

	assert.NoError(t, Fanout{}.Notify(context.Background(), Alert{}))
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(zerolog.New(&buf))
	require.NoError(t, n.Notify(context.Background(), NewTemperature(41.2, time.Now())))

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "Temperature is high: 41.2°C")
	assert.Contains(t, buf.String(), `"component":"alert"`)
}
