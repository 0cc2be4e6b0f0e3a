package monitor

import (
	"math"
	"slices"
	"time"
)

type Sensor string

const (
	Temperature Sensor = "temperature"
	Humidity    Sensor = "humidity"
	Battery     Sensor = "battery"
	AirQuality  Sensor = "airQuality"
)

// Reading is one scalar sensor value.
type Reading struct {
	Sensor Sensor    `json:"sensor"`
	Value  float64   `json:"value"`
	At     time.Time `json:"at"`
}

// Detection is one face-log record as published by the robot.
type Detection struct {
	Count        int       `json:"count"`
	LastDetected string    `json:"time"`
	Raw          []byte    `json:"-"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// Snapshot is the latest known value of every sensor plus the notification log.
type Snapshot struct {
	Temperature     *float64    `json:"temperature"`
	Humidity        *float64    `json:"humidity"`
	Battery         *float64    `json:"battery"`
	AirQuality      *float64    `json:"airQuality,omitempty"`
	HasNotification bool        `json:"hasNotification"`
	Notifications   []Detection `json:"notifications"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Temperature = clonePtr(s.Temperature)
	out.Humidity = clonePtr(s.Humidity)
	out.Battery = clonePtr(s.Battery)
	out.AirQuality = clonePtr(s.AirQuality)
	out.Notifications = slices.Clone(s.Notifications)
	return out
}

func (s *Snapshot) value(sensor Sensor) **float64 {
	switch sensor {
	case Temperature:
		return &s.Temperature
	case Humidity:
		return &s.Humidity
	case Battery:
		return &s.Battery
	case AirQuality:
		return &s.AirQuality
	}
	return nil
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Delta holds only the fields that changed between two snapshots.
type Delta struct {
	Temperature     *float64    `json:"temperature,omitempty"`
	Humidity        *float64    `json:"humidity,omitempty"`
	Battery         *float64    `json:"battery,omitempty"`
	AirQuality      *float64    `json:"airQuality,omitempty"`
	HasNotification *bool       `json:"hasNotification,omitempty"`
	Notifications   []Detection `json:"notifications,omitempty"`
}

func (d *Delta) IsEmpty() bool {
	return d.Temperature == nil &&
		d.Humidity == nil &&
		d.Battery == nil &&
		d.AirQuality == nil &&
		d.HasNotification == nil &&
		d.Notifications == nil
}

const valueThreshold = 0.01

func valueChanged(old, new_ *float64) bool {
	if new_ == nil {
		return false
	}
	return old == nil || math.Abs(*old-*new_) >= valueThreshold
}

func ComputeDelta(old, new_ Snapshot) *Delta {
	d := &Delta{}

	if valueChanged(old.Temperature, new_.Temperature) {
		d.Temperature = clonePtr(new_.Temperature)
	}
	if valueChanged(old.Humidity, new_.Humidity) {
		d.Humidity = clonePtr(new_.Humidity)
	}
	if valueChanged(old.Battery, new_.Battery) {
		d.Battery = clonePtr(new_.Battery)
	}
	if valueChanged(old.AirQuality, new_.AirQuality) {
		d.AirQuality = clonePtr(new_.AirQuality)
	}
	if old.HasNotification != new_.HasNotification {
		v := new_.HasNotification
		d.HasNotification = &v
	}
	if !slices.EqualFunc(old.Notifications, new_.Notifications, sameDetection) {
		d.Notifications = slices.Clone(new_.Notifications)
	}

	return d
}

func sameDetection(a, b Detection) bool {
	return a.Count == b.Count && a.LastDetected == b.LastDetected && a.ReceivedAt.Equal(b.ReceivedAt)
}
