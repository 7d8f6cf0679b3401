package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const meterName = "github.com/chinmina/chinmina-git-credential/internal/cache"

var (
	metricsOnce sync.Once
	lookups     metric.Int64Counter
	latency     metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(meterName)

		var err error
		lookups, err = meter.Int64Counter(
			"cache.operations",
			metric.WithDescription("Operations on expiring lookup caches, by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		latency, err = meter.Float64Histogram(
			"cache.operation.duration",
			metric.WithDescription("Time spent in lookup cache operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented reports every operation on the wrapped cache as a metric and
// as an event on the current span. The name identifies what is cached, for
// example "tenant".
type Instrumented[T any] struct {
	wrapped TTLCache[T]
	name    string
}

func NewInstrumented[T any](cache TTLCache[T], name string) *Instrumented[T] {
	initMetrics()
	return &Instrumented[T]{wrapped: cache, name: name}
}

func (i *Instrumented[T]) Get(ctx context.Context, key string) (T, bool, error) {
	done := i.track(ctx, "get")

	value, found, err := i.wrapped.Get(ctx, key)

	switch {
	case err != nil:
		done("error")
	case found:
		done("hit")
	default:
		done("miss")
	}

	return value, found, err
}

func (i *Instrumented[T]) Set(ctx context.Context, key string, value T) error {
	done := i.track(ctx, "set")
	err := i.wrapped.Set(ctx, key, value)
	done(outcome(err))
	return err
}

func (i *Instrumented[T]) Invalidate(ctx context.Context, key string) error {
	done := i.track(ctx, "invalidate")
	err := i.wrapped.Invalidate(ctx, key)
	done(outcome(err))
	return err
}

func (i *Instrumented[T]) Close() error {
	return i.wrapped.Close()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// track starts timing an operation. The returned func records it with the
// final status.
func (i *Instrumented[T]) track(ctx context.Context, operation string) func(status string) {
	start := time.Now()

	return func(status string) {
		elapsed := time.Since(start).Seconds()
		common := []attribute.KeyValue{
			attribute.String("cache.name", i.name),
			attribute.String("cache.operation", operation),
		}

		if lookups != nil {
			lookups.Add(ctx, 1, metric.WithAttributes(append(common, attribute.String("cache.status", status))...))
		}
		if latency != nil {
			latency.Record(ctx, elapsed, metric.WithAttributes(common...))
		}

		trace.SpanFromContext(ctx).AddEvent("cache."+operation, trace.WithAttributes(
			append(common,
				attribute.String("cache.status", status),
				attribute.Float64("cache.duration", elapsed),
			)...,
		))
	}
}
