// Package alert raises local alerts when sensor readings cross a threshold.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const DefaultTemperatureLimit = 35.0

type Kind string

const KindTemperature Kind = "temperature"

// Alert is a single local notification.
type Alert struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewTemperature(value float64, at time.Time) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Kind:      KindTemperature,
		Title:     "Temperature Alert",
		Body:      fmt.Sprintf("Temperature is high: %.1f°C", value),
		Value:     value,
		CreatedAt: at,
	}
}

// Threshold fires when a value is strictly above Limit.
type Threshold struct {
	Limit float64
}

func (t Threshold) Exceeded(v float64) bool {
	return v > t.Limit
}

// Notifier delivers an alert somewhere.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// Fanout delivers to every notifier and joins the failures.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	fired.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(a.Kind))))
	return errors.Join(errs...)
}

// Log writes alerts to the application log.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "alert").Logger()}
}

func (l *Log) Notify(_ context.Context, a Alert) error {
	l.log.Warn().
		Str("id", a.ID).
		Str("kind", string(a.Kind)).
		Float64("value", a.Value).
		Msg(a.Title + ": " + a.Body)
	return nil
}

var fired, _ = otel.Meter("github.com/safem8/controller/internal/alert").
	Int64Counter("alerts.fired", metric.WithDescription("Local alerts raised"))
