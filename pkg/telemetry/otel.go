package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/Eursukkul/mentorship-slots"

// Setup installs a global meter provider exporting over OTLP gRPC. With an
// empty endpoint the global no-op provider stays in place.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Metrics counts engine operations by name and outcome.
type Metrics struct {
	bookingOps metric.Int64Counter
	slotOps    metric.Int64Counter
}

func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	bookingOps, err := meter.Int64Counter(
		"booking.operations",
		metric.WithDescription("Booking operations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	slotOps, err := meter.Int64Counter(
		"slot.operations",
		metric.WithDescription("Availability slot operations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{bookingOps: bookingOps, slotOps: slotOps}, nil
}

func (m *Metrics) RecordBookingOperation(ctx context.Context, operation, outcome string) {
	m.bookingOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordSlotOperation(ctx context.Context, operation, outcome string) {
	m.slotOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
