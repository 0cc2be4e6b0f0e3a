package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safem8/controller/internal/alert"
)

// fakeSource replays canned values per path, then waits for cancellation.
type fakeSource struct {
	values map[string][]string
}

func (f *fakeSource) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) error {
	for _, v := range f.values[path] {
		fn(json.RawMessage(v))
	}
	<-ctx.Done()
	return ctx.Err()
}

type recorder struct {
	mu         sync.Mutex
	readings   []Reading
	detections []Detection
	err        error
}

func (r *recorder) RecordReading(_ context.Context, rd Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, rd)
	return r.err
}

func (r *recorder) RecordDetection(_ context.Context, d Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detections = append(r.detections, d)
	return r.err
}

type alerts struct {
	mu  sync.Mutex
	got []alert.Alert
}

func (a *alerts) Notify(_ context.Context, al alert.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, al)
	return nil
}

func newMonitor(src Source, n alert.Notifier, recs ...Recorder) *Monitor {
	m := New(src, Options{Paths: DefaultPaths(), TemperatureLimit: alert.DefaultTemperatureLimit}, n, zerolog.Nop(), recs...)
	m.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }
	return m
}

func ptr(v float64) *float64 { return &v }

func TestHandleReading_UpdatesSnapshot(t *testing.T) {
	rec := &recorder{}
	m := newMonitor(&fakeSource{}, nil, rec)
	ctx := context.Background()

	m.handleReading(ctx, Humidity, json.RawMessage(`61.5`))
	m.handleReading(ctx, Battery, json.RawMessage(`"87"`))
	m.handleReading(ctx, Battery, json.RawMessage(`null`))
	m.handleReading(ctx, Temperature, json.RawMessage(`{"value":3}`))

	s := m.Snapshot()
	assert.Equal(t, ptr(61.5), s.Humidity)
	assert.Equal(t, ptr(87), s.Battery)
	assert.Nil(t, s.Temperature)

	require.Len(t, rec.readings, 2)
	assert.Equal(t, Reading{Sensor: Battery, Value: 87, At: m.now()}, rec.readings[1])
}

func TestHandleReading_TemperatureAlert(t *testing.T) {
	n := &alerts{}
	m := newMonitor(&fakeSource{}, n)
	ctx := context.Background()

	m.handleReading(ctx, Temperature, json.RawMessage(`35`))
	m.handleReading(ctx, Temperature, json.RawMessage(`35.7`))
	m.handleReading(ctx, Humidity, json.RawMessage(`90`))
	m.handleReading(ctx, Temperature, json.RawMessage(`40`))

	require.Len(t, n.got, 2)
	assert.Equal(t, "Temperature is high: 35.7°C", n.got[0].Body)
	assert.Equal(t, 40.0, n.got[1].Value)
	assert.Equal(t, alert.KindTemperature, n.got[1].Kind)
}

func TestHandleReading_RecorderErrorsDoNotStopAlerts(t *testing.T) {
	n := &alerts{}
	m := newMonitor(&fakeSource{}, n, &recorder{err: errors.New("disk full")})

	m.handleReading(context.Background(), Temperature, json.RawMessage(`50`))
	assert.Len(t, n.got, 1)
	assert.Equal(t, ptr(50), m.Snapshot().Temperature)
}

func TestHandleFaceLog_KeepsLatestFive(t *testing.T) {
	rec := &recorder{}
	m := newMonitor(&fakeSource{}, nil, rec)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		raw, _ := json.Marshal(map[string]any{"count_in_last_30s": i, "last_detected_time": "10:0" + string(rune('0'+i))})
		m.handleFaceLog(ctx, raw)
	}

	log := m.Notifications()
	require.Len(t, log, DefaultCapacity)
	assert.Equal(t, 7, log[0].Count)
	assert.Equal(t, "10:07", log[0].LastDetected)
	assert.Equal(t, 3, log[4].Count)
	assert.True(t, m.Snapshot().HasNotification)
	assert.Len(t, rec.detections, 7)
	assert.NotEmpty(t, rec.detections[0].Raw)
}

func TestHandleFaceLog_FlagFollowsCount(t *testing.T) {
	m := newMonitor(&fakeSource{}, nil)
	ctx := context.Background()

	m.handleFaceLog(ctx, json.RawMessage(`{"count_in_last_30s":2,"last_detected_time":"11:00"}`))
	assert.True(t, m.Snapshot().HasNotification)

	m.handleFaceLog(ctx, json.RawMessage(`{"count_in_last_30s":0,"last_detected_time":"11:00"}`))
	assert.False(t, m.Snapshot().HasNotification)
	assert.Len(t, m.Notifications(), 2)

	m.handleFaceLog(ctx, json.RawMessage(`null`))
	m.handleFaceLog(ctx, json.RawMessage(`[1,2]`))
	assert.Len(t, m.Notifications(), 2)
}

func TestAcknowledgeNotifications(t *testing.T) {
	m := newMonitor(&fakeSource{}, nil)
	m.handleFaceLog(context.Background(), json.RawMessage(`{"count_in_last_30s":1,"last_detected_time":"12:00"}`))
	require.True(t, m.Snapshot().HasNotification)

	drain(m)
	m.AcknowledgeNotifications()
	assert.False(t, m.Snapshot().HasNotification)
	assert.Len(t, m.Notifications(), 1)

	select {
	case s := <-m.Changes():
		assert.False(t, s.HasNotification)
	default:
		t.Fatal("acknowledge did not emit a snapshot")
	}

	m.AcknowledgeNotifications()
	select {
	case <-m.Changes():
		t.Fatal("acknowledging twice should not emit")
	default:
	}
}

func TestRun_SubscribesConfiguredFeeds(t *testing.T) {
	src := &fakeSource{values: map[string][]string{
		"log/temp":        {`22.5`},
		"log/humid":       {`40`},
		"monitor/battery": {`77`},
		"face_log":        {`{"count_in_last_30s":1,"last_detected_time":"08:15"}`},
	}}
	m := newMonitor(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Temperature != nil && s.Humidity != nil && s.Battery != nil && len(s.Notifications) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, m.Snapshot().AirQuality)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSnapshotClone_IsDeep(t *testing.T) {
	s := Snapshot{Temperature: ptr(20), Notifications: []Detection{{Count: 1}}}
	c := s.Clone()
	*c.Temperature = 99
	c.Notifications[0].Count = 9

	assert.Equal(t, 20.0, *s.Temperature)
	assert.Equal(t, 1, s.Notifications[0].Count)
}

func drain(m *Monitor) {
	for {
		select {
		case <-m.Changes():
		default:
			return
		}
	}
}
