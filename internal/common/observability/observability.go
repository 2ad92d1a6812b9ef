package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records checkout outcomes through an OpenTelemetry meter
// exported via Prometheus.
type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	checkoutCounter  otelmetric.Int64Counter
	checkoutDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	checkoutCounter, _ := meter.Int64Counter(
		"checkout.processed",
		otelmetric.WithDescription("Number of checkout attempts processed"),
	)

	checkoutDuration, _ := meter.Float64Histogram(
		"checkout.duration",
		otelmetric.WithDescription("Checkout attempt duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:    provider,
		meter:            meter,
		checkoutCounter:  checkoutCounter,
		checkoutDuration: checkoutDuration,
	}
}

// RecordCheckout counts one resolved attempt; errorCode is empty on success.
func (o *Observability) RecordCheckout(ctx context.Context, outcome, errorCode string) {
	if o.checkoutCounter != nil {
		o.checkoutCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("error_code", errorCode),
		))
	}
}

func (o *Observability) RecordCheckoutDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o.checkoutDuration != nil {
		o.checkoutDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
