package influx

import (
	"context"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safem8/controller/internal/monitor"
)

type capture struct {
	points  []*influxdb2_write.Point
	flushed bool
}

func (c *capture) WritePoint(p *influxdb2_write.Point) { c.points = append(c.points, p) }
func (c *capture) Flush()                              { c.flushed = true }

func TestReadingPoint(t *testing.T) {
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	p := ReadingPoint("safem8-01", monitor.Reading{Sensor: monitor.Temperature, Value: 36.5, At: at})

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.True(t, strings.HasPrefix(line, "sensor_reading,device=safem8-01,sensor=temperature value=36.5 "), line)
	assert.Equal(t, at, p.Time())
}

func TestDetectionPoint(t *testing.T) {
	p := DetectionPoint("safem8-01", monitor.Detection{Count: 2, LastDetected: "09:41"})
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "face_detection,device=safem8-01 ")
	assert.Contains(t, line, "count=2i")
	assert.Contains(t, line, `last_detected="09:41"`)
	assert.False(t, p.Time().IsZero())
}

func TestExporter_WritesPoints(t *testing.T) {
	c := &capture{}
	e := &Exporter{writer: c, device: "bot"}
	ctx := context.Background()

	require.NoError(t, e.RecordReading(ctx, monitor.Reading{Sensor: monitor.Battery, Value: 80, At: time.Now()}))
	require.NoError(t, e.RecordDetection(ctx, monitor.Detection{Count: 1}))
	e.Close()

	assert.Len(t, c.points, 2)
	assert.True(t, c.flushed)
}

func TestExporter_NotConnected(t *testing.T) {
	e := &Exporter{}
	assert.ErrorIs(t, e.RecordReading(context.Background(), monitor.Reading{}), ErrNotConnected)
	assert.ErrorIs(t, e.RecordDetection(context.Background(), monitor.Detection{}), ErrNotConnected)
}
