// Package influx exports sensor readings and face detections to InfluxDB.
package influx

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/safem8/controller/internal/monitor"
)

const (
	readingMeasurement   = "sensor_reading"
	detectionMeasurement = "face_detection"
)

var ErrNotConnected = errors.New("influx: client not connected")

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Device string
}

// pointWriter is the subset of the write API the exporter needs.
type pointWriter interface {
	WritePoint(point *influxdb2_write.Point)
	Flush()
}

// Exporter implements monitor.Recorder.
type Exporter struct {
	client influxdb2.Client
	writer pointWriter
	device string
	log    zerolog.Logger
}

// Connect creates the client, checks the server is reachable and starts a
// non-blocking writer whose errors are logged.
func Connect(ctx context.Context, cfg Config, log zerolog.Logger) (*Exporter, error) {
	log = log.With().Str("component", "influx").Logger()

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		if err == nil {
			err = ErrNotConnected
		}
		return nil, err
	}

	w := client.WriteAPI(cfg.Org, cfg.Bucket)
	go logErrors(w, cfg.Bucket, log)

	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("InfluxDB client initialized")
	return &Exporter{client: client, writer: w, device: cfg.Device, log: log}, nil
}

func logErrors(w influxdb2_api.WriteAPI, bucket string, log zerolog.Logger) {
	for err := range w.Errors() {
		log.Error().Err(err).Str("bucket", bucket).Msg("Error sending data to InfluxDB")
	}
}

func (e *Exporter) RecordReading(_ context.Context, r monitor.Reading) error {
	if e.writer == nil {
		return ErrNotConnected
	}
	e.writer.WritePoint(ReadingPoint(e.device, r))
	return nil
}

func (e *Exporter) RecordDetection(_ context.Context, d monitor.Detection) error {
	if e.writer == nil {
		return ErrNotConnected
	}
	e.writer.WritePoint(DetectionPoint(e.device, d))
	return nil
}

// Close flushes pending points.
func (e *Exporter) Close() {
	if e.writer != nil {
		e.writer.Flush()
	}
	if e.client != nil {
		e.client.Close()
	}
}

func ReadingPoint(device string, r monitor.Reading) *influxdb2_write.Point {
	return influxdb2.NewPoint(readingMeasurement,
		map[string]string{"device": device, "sensor": string(r.Sensor)},
		map[string]interface{}{"value": r.Value},
		r.At)
}

func DetectionPoint(device string, d monitor.Detection) *influxdb2_write.Point {
	at := d.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return influxdb2.NewPoint(detectionMeasurement,
		map[string]string{"device": device},
		map[string]interface{}{"count": d.Count, "last_detected": d.LastDetected},
		at)
}
