package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safem8/controller/internal/alert"
	"github.com/safem8/controller/internal/monitor"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "history.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestReadings_NewestFirstPerSensor(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.RecordReading(ctx, monitor.Reading{
			Sensor: monitor.Temperature,
			Value:  30 + float64(i),
			At:     base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.RecordReading(ctx, monitor.Reading{Sensor: monitor.Humidity, Value: 60, At: base}))

	got, err := s.Readings(ctx, string(monitor.Temperature), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 33.0, got[0].Value)
	assert.Equal(t, 32.0, got[1].Value)

	hum, err := s.Readings(ctx, string(monitor.Humidity), 0)
	require.NoError(t, err)
	assert.Len(t, hum, 1)
}

func TestDetections_KeepRawPayload(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	raw := []byte(`{"count_in_last_30s":3,"last_detected_time":"14:02"}`)
	require.NoError(t, s.RecordDetection(ctx, monitor.Detection{
		Count: 3, LastDetected: "14:02", Raw: raw, ReceivedAt: time.Now(),
	}))

	got, err := s.Detections(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Count)
	assert.JSONEq(t, string(raw), string(got[0].Raw))
}

func TestNotify_PersistsAlert(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	a := alert.NewTemperature(38.2, time.Now())
	require.NoError(t, s.Notify(ctx, a))

	got, err := s.Alerts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, "Temperature is high: 38.2°C", got[0].Body)

	// duplicate IDs are rejected by the primary key
	assert.Error(t, s.Notify(ctx, a))
}

func TestClampLimit(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{0, 50}, {-3, 50}, {7, 7}, {5000, 1000}} {
		assert.Equal(t, tc.want, clampLimit(tc.in), fmt.Sprint(tc.in))
	}
}
