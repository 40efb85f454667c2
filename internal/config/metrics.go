package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordConfigLoad counts startup config loads. On success the optional integrations that
// ended up enabled ride along as attributes.
func recordConfigLoad(ctx context.Context, profile string, cfg *Config, err error) {
	loadMetricsOnce.Do(func() {
		counter, cerr := otel.Meter("omada-captive-portal").Int64Counter("config.load.events")
		if cerr == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("error_class", classifyConfigLoadError(err)),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("outcome", "failure"))
	} else {
		attrs = append(attrs, attribute.String("outcome", "success"))
		attrs = append(attrs, enabledFeatures(cfg)...)
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func enabledFeatures(cfg *Config) []attribute.KeyValue {
	if cfg == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Bool("redis", cfg.RedisEnabled()),
		attribute.Bool("ingest_auth", cfg.IngestJWTSecret != ""),
		attribute.Bool("token_cache", cfg.OmadaTokenCacheTTL > 0),
		attribute.Bool("expiry_sweeper", cfg.PortalExpirySweepSchedule != ""),
		attribute.String("db_driver", cfg.DBDriver),
	}
}

func normalizeConfigProfile(profile string) string {
	v := strings.ToLower(strings.TrimSpace(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

// classifyConfigLoadError buckets load errors: missing required settings, values that
// fail to parse, and values that parse but are out of range.
func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, " is required"):
		return "missing"
	case strings.HasPrefix(msg, "parse "):
		return "parse"
	case strings.HasPrefix(msg, "validate config:"):
		return "invalid"
	default:
		return "load"
	}
}
