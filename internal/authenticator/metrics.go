package authenticator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/chinmina/chinmina-git-credential/internal/authenticator"

var (
	metricsOnce  sync.Once
	acquisitions metric.Int64Counter
	acquireTimes metric.Float64Histogram

	tracer = otel.Tracer(instrumentationName)
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)

		var err error
		acquisitions, err = meter.Int64Counter(
			"authenticator.acquisitions",
			metric.WithDescription("Credential acquisitions by source and outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		acquireTimes, err = meter.Float64Histogram(
			"authenticator.acquire.duration",
			metric.WithDescription("Credential acquisition duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

func recordAcquisition(ctx context.Context, source Source, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("acquire.source", string(source)),
		attribute.String("acquire.outcome", outcome),
	)

	if acquisitions != nil {
		acquisitions.Add(ctx, 1, attrs)
	}
	if acquireTimes != nil {
		acquireTimes.Record(ctx, duration.Seconds(), attrs)
	}
}
