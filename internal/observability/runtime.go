package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/omada-captive-portal/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the telemetry providers for the process lifetime. LoggerProvider is nil
// unless OTLP log export is enabled.
type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	return &Runtime{MeterProvider: mp, TracerProvider: tp, LoggerProvider: lp}, nil
}

// Shutdown flushes traces first, then metrics, then logs so late log records still export.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	type provider struct {
		name     string
		shutdown func(context.Context) error
	}
	var providers []provider
	if r.TracerProvider != nil {
		providers = append(providers, provider{"tracer", r.TracerProvider.Shutdown})
	}
	if r.MeterProvider != nil {
		providers = append(providers, provider{"meter", r.MeterProvider.Shutdown})
	}
	if r.LoggerProvider != nil {
		providers = append(providers, provider{"logger", r.LoggerProvider.Shutdown})
	}
	var errs []error
	for _, p := range providers {
		if err := p.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s provider: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}
