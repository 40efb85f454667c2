package observability

import (
	"context"
	"testing"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestRuntimeShutdownNilIsNoop(t *testing.T) {
	var r *Runtime
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil runtime shutdown: %v", err)
	}
}

func TestRuntimeShutdownStopsEveryProvider(t *testing.T) {
	r := &Runtime{
		MeterProvider:  sdkmetric.NewMeterProvider(),
		TracerProvider: sdktrace.NewTracerProvider(),
		LoggerProvider: sdklog.NewLoggerProvider(),
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
