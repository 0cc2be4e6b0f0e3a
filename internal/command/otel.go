package command

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/safem8/controller/internal/command"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
