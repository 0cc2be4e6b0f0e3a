// Package monitor follows the robot's sensor keys in the real-time database,
// keeps the latest values and the face-detection notification log, and raises
// temperature alerts.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/safem8/controller/internal/alert"
)

const DefaultCapacity = 5

// Source streams the value stored at a path.
type Source interface {
	Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) error
}

// Recorder persists readings and detections. Failures are logged, never fatal.
type Recorder interface {
	RecordReading(ctx context.Context, r Reading) error
	RecordDetection(ctx context.Context, d Detection) error
}

// Paths are the database keys of each feed. An empty path disables the feed.
type Paths struct {
	Temperature string
	Humidity    string
	Battery     string
	AirQuality  string
	FaceLog     string
}

func DefaultPaths() Paths {
	return Paths{
		Temperature: "log/temp",
		Humidity:    "log/humid",
		Battery:     "monitor/battery",
		FaceLog:     "face_log",
	}
}

type Options struct {
	Paths            Paths
	TemperatureLimit float64
	// Capacity bounds the notification log; older entries are dropped.
	Capacity int
}

type Monitor struct {
	src       Source
	opts      Options
	threshold alert.Threshold
	notifier  alert.Notifier
	recorders []Recorder
	log       zerolog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	snap    Snapshot
	changes chan Snapshot

	updates metric.Int64Counter
}

func New(src Source, opts Options, notifier alert.Notifier, log zerolog.Logger, recorders ...Recorder) *Monitor {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	m := &Monitor{
		src:       src,
		opts:      opts,
		threshold: alert.Threshold{Limit: opts.TemperatureLimit},
		notifier:  notifier,
		recorders: recorders,
		log:       log.With().Str("component", "monitor").Logger(),
		now:       time.Now,
		changes:   make(chan Snapshot, 64),
	}
	m.updates, _ = otel.Meter("github.com/safem8/controller/internal/monitor").
		Int64Counter("sensor.updates", metric.WithDescription("Sensor values received"))
	return m
}

// Changes delivers a snapshot after every change. Snapshots are dropped when
// the consumer falls behind.
func (m *Monitor) Changes() <-chan Snapshot {
	return m.changes
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone()
}

// Notifications returns the notification log, newest first.
func (m *Monitor) Notifications() []Detection {
	return m.Snapshot().Notifications
}

// AcknowledgeNotifications clears the unread flag.
func (m *Monitor) AcknowledgeNotifications() {
	m.mu.Lock()
	changed := m.snap.HasNotification
	m.snap.HasNotification = false
	m.mu.Unlock()
	if changed {
		m.emit()
	}
}

// Run subscribes to every configured feed and blocks until ctx is cancelled.
// Leaving Run tears down all listeners.
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	feeds := []struct {
		sensor Sensor
		path   string
	}{
		{Temperature, m.opts.Paths.Temperature},
		{Humidity, m.opts.Paths.Humidity},
		{Battery, m.opts.Paths.Battery},
		{AirQuality, m.opts.Paths.AirQuality},
	}
	for _, f := range feeds {
		if f.path == "" {
			continue
		}
		g.Go(func() error {
			return m.src.Subscribe(ctx, f.path, func(raw json.RawMessage) {
				m.handleReading(ctx, f.sensor, raw)
			})
		})
	}
	if p := m.opts.Paths.FaceLog; p != "" {
		g.Go(func() error {
			return m.src.Subscribe(ctx, p, func(raw json.RawMessage) {
				m.handleFaceLog(ctx, raw)
			})
		})
	}

	m.log.Info().Interface("paths", m.opts.Paths).Msg("Sensor subscriptions started")
	err := g.Wait()
	m.log.Info().Msg("Sensor subscriptions stopped")
	return err
}

func (m *Monitor) handleReading(ctx context.Context, sensor Sensor, raw json.RawMessage) {
	v, ok, err := decodeScalar(raw)
	if err != nil {
		m.log.Warn().Err(err).Str("sensor", string(sensor)).Str("raw", string(raw)).Msg("Ignoring sensor value")
		return
	}
	if !ok {
		return
	}
	r := Reading{Sensor: sensor, Value: v, At: m.now()}

	m.mu.Lock()
	*m.snap.value(sensor) = &r.Value
	m.mu.Unlock()

	m.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("sensor", string(sensor))))
	m.log.Debug().Str("sensor", string(sensor)).Float64("value", v).Msg("Sensor value")
	m.emit()

	for _, rec := range m.recorders {
		if err := rec.RecordReading(ctx, r); err != nil {
			m.log.Error().Err(err).Str("sensor", string(sensor)).Msg("Error recording reading")
		}
	}

	if sensor == Temperature && m.threshold.Exceeded(v) && m.notifier != nil {
		if err := m.notifier.Notify(ctx, alert.NewTemperature(v, r.At)); err != nil {
			m.log.Error().Err(err).Msg("Error sending temperature alert")
		}
	}
}

func (m *Monitor) handleFaceLog(ctx context.Context, raw json.RawMessage) {
	d, ok, err := decodeDetection(raw)
	if err != nil {
		m.log.Warn().Err(err).Str("raw", string(raw)).Msg("Ignoring face log")
		return
	}
	if !ok {
		return
	}
	d.ReceivedAt = m.now()

	m.mu.Lock()
	entries := append([]Detection{d}, m.snap.Notifications...)
	if len(entries) > m.opts.Capacity {
		entries = entries[:m.opts.Capacity]
	}
	m.snap.Notifications = entries
	m.snap.HasNotification = d.Count > 0
	m.mu.Unlock()

	m.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("sensor", "faceLog")))
	m.emit()

	for _, rec := range m.recorders {
		if err := rec.RecordDetection(ctx, d); err != nil {
			m.log.Error().Err(err).Msg("Error recording detection")
		}
	}
}

func (m *Monitor) emit() {
	s := m.Snapshot()
	select {
	case m.changes <- s:
	default:
	}
}

// decodeScalar accepts numbers and numeric strings; null reports ok=false.
func decodeScalar(raw json.RawMessage) (float64, bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return 0, false, fmt.Errorf("expected a scalar, got %s", raw)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

func decodeDetection(raw json.RawMessage) (Detection, bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Detection{}, false, err
	}
	if v == nil {
		return Detection{}, false, nil
	}
	rec, ok := v.(map[string]any)
	if !ok {
		return Detection{}, false, fmt.Errorf("expected an object, got %s", raw)
	}
	count, err := cast.ToIntE(rec["count_in_last_30s"])
	if err != nil {
		return Detection{}, false, fmt.Errorf("count_in_last_30s: %w", err)
	}
	return Detection{
		Count:        count,
		LastDetected: cast.ToString(rec["last_detected_time"]),
		Raw:          append([]byte(nil), raw...),
	}, true, nil
}
