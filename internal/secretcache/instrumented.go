package secretcache

import (
	"context"
	"sync"
	"time"

	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	metricsOnce    sync.Once
	storeOps       metric.Int64Counter
	storeDurations metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/chinmina/chinmina-git-credential/internal/secretcache")

		var err error
		storeOps, err = meter.Int64Counter(
			"secretstore.operations",
			metric.WithDescription("Total secret store operations"),
		)
		if err != nil {
			otel.Handle(err)
		}

		storeDurations, err = meter.Float64Histogram(
			"secretstore.operation.duration",
			metric.WithDescription("Secret store operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented wraps a Store with metrics and span attributes. The store name
// distinguishes the memory cache from durable stores in telemetry.
type Instrumented struct {
	wrapped Store
	name    string
}

// NewInstrumented creates an instrumented store wrapper.
func NewInstrumented(store Store, name string) *Instrumented {
	initMetrics()
	return &Instrumented{
		wrapped: store,
		name:    name,
	}
}

func (i *Instrumented) WriteCredential(ctx context.Context, t target.Target, c secret.Credential) error {
	start := time.Now()
	err := i.wrapped.WriteCredential(ctx, t, c)
	i.record(ctx, "write", secret.KindCredential, writeStatus(err), time.Since(start))
	return err
}

func (i *Instrumented) ReadCredential(ctx context.Context, t target.Target) (secret.Credential, bool, error) {
	start := time.Now()
	c, found, err := i.wrapped.ReadCredential(ctx, t)
	i.record(ctx, "read", secret.KindCredential, readStatus(found, err), time.Since(start))
	return c, found, err
}

func (i *Instrumented) DeleteCredential(ctx context.Context, t target.Target) error {
	start := time.Now()
	err := i.wrapped.DeleteCredential(ctx, t)
	i.record(ctx, "delete", secret.KindCredential, writeStatus(err), time.Since(start))
	return err
}

func (i *Instrumented) WriteToken(ctx context.Context, t target.Target, tok secret.Token) error {
	start := time.Now()
	err := i.wrapped.WriteToken(ctx, t, tok)
	i.record(ctx, "write", secret.KindToken, writeStatus(err), time.Since(start))
	return err
}

func (i *Instrumented) ReadToken(ctx context.Context, t target.Target) (secret.Token, bool, error) {
	start := time.Now()
	tok, found, err := i.wrapped.ReadToken(ctx, t)
	i.record(ctx, "read", secret.KindToken, readStatus(found, err), time.Since(start))
	return tok, found, err
}

func (i *Instrumented) DeleteToken(ctx context.Context, t target.Target) error {
	start := time.Now()
	err := i.wrapped.DeleteToken(ctx, t)
	i.record(ctx, "delete", secret.KindToken, writeStatus(err), time.Since(start))
	return err
}

func readStatus(found bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case found:
		return "hit"
	default:
		return "miss"
	}
}

func writeStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (i *Instrumented) record(ctx context.Context, operation string, kind secret.Kind, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("secretstore.name", i.name),
		attribute.String("secretstore.operation", operation),
		attribute.String("secretstore.kind", kind.String()),
	}

	if storeOps != nil {
		storeOps.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("secretstore.status", status))...))
	}
	if storeDurations != nil {
		storeDurations.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("secretstore."+i.name+"."+operation+".status", status),
		attribute.Float64("secretstore."+i.name+"."+operation+".duration", duration.Seconds()),
	)
}
