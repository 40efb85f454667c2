package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/omada-captive-portal/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "omada-captive-portal"

type AppMetrics struct {
	ingestUpsertCounter   metric.Int64Counter
	portalSessionCounter  metric.Int64Counter
	portalAuthCounter     metric.Int64Counter
	portalLogoutCounter   metric.Int64Counter
	controllerCallCounter metric.Int64Counter
	repositoryOpCounter   metric.Int64Counter
	expirySweepCounter    metric.Int64Counter
	rateLimitCounter      metric.Int64Counter
	ingestAuthCounter     metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	counters := []struct {
		name string
		dst  *metric.Int64Counter
	}{
		{"inventory.upserts", &m.ingestUpsertCounter},
		{"portal.sessions.begin", &m.portalSessionCounter},
		{"portal.auth.attempts", &m.portalAuthCounter},
		{"portal.logout.attempts", &m.portalLogoutCounter},
		{"controller.calls", &m.controllerCallCounter},
		{"repository.operations", &m.repositoryOpCounter},
		{"portal.expiry.sweeps", &m.expirySweepCounter},
		{"http.rate_limit.decisions", &m.rateLimitCounter},
		{"ingest.auth.validations", &m.ingestAuthCounter},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordInventoryUpsert(ctx context.Context, entity string, created bool, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.ingestUpsertCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.Bool("created", created),
		attribute.String("status", status),
	))
}

func RecordPortalSessionBegin(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.portalSessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordPortalAuth(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.portalAuthCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordPortalLogout(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.portalLogoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordControllerCall(ctx context.Context, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.controllerCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordExpirySweep(ctx context.Context, expired int64, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.expirySweepCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("expired_any", expired > 0),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision, mode string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("decision", decision),
		attribute.String("mode", mode),
	))
}

func RecordIngestTokenValidation(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.ingestAuthCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
