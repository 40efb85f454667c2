package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPAddr                     string
	HTTPReadHeaderTimeout        time.Duration
	HTTPRequestTimeout           time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	DBDriver    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OmadaControllerURL       string
	OmadaControllerVerifySSL bool
	OmadaControllerUsername  string
	OmadaControllerPassword  string
	OmadaControllerTimeout   time.Duration
	OmadaTokenCacheTTL       time.Duration

	PortalUsername            string
	PortalPasswordHash        string
	PortalPassword            string
	PortalSessionTTL          time.Duration
	PortalAuthDuration        time.Duration
	PortalAuthRateLimitRPM    int
	PortalExpirySweepSchedule string

	IngestJWTSecret   string
	IngestJWTIssuer   string
	IngestJWTAudience string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

func Load() (*Config, error) {
	cfg, err := load()
	profile := os.Getenv("APP_ENV")
	if err != nil {
		recordConfigLoad(context.Background(), profile, nil, err)
		return nil, err
	}
	recordConfigLoad(context.Background(), profile, cfg, nil)
	return cfg, nil
}

func load() (*Config, error) {
	p := &envParser{}
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPAddr:                     getEnv("HTTP_ADDR", ":8080"),
		HTTPReadHeaderTimeout:        p.duration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		HTTPRequestTimeout:           p.duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:              p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		ShutdownHTTPDrainTimeout:     p.duration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10*time.Second),
		ShutdownObservabilityTimeout: p.duration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL: getEnv("DATABASE_URL", "file:portal.db?_foreign_keys=on"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.integer("REDIS_DB", 0),

		OmadaControllerURL:       os.Getenv("OMADA_CONTROLLER_URL"),
		OmadaControllerVerifySSL: p.boolean("OMADA_CONTROLLER_VERIFY_SSL", true),
		OmadaControllerUsername:  os.Getenv("OMADA_CONTROLLER_USERNAME"),
		OmadaControllerPassword:  os.Getenv("OMADA_CONTROLLER_PASSWORD"),
		OmadaControllerTimeout:   p.duration("OMADA_CONTROLLER_TIMEOUT", 10*time.Second),
		OmadaTokenCacheTTL:       p.duration("OMADA_TOKEN_CACHE_TTL", 0),

		PortalUsername:            os.Getenv("PORTAL_USERNAME"),
		PortalPasswordHash:        os.Getenv("PORTAL_PASSWORD_HASH"),
		PortalPassword:            os.Getenv("PORTAL_PASSWORD"),
		PortalSessionTTL:          p.duration("PORTAL_SESSION_TTL", 24*time.Hour),
		PortalAuthDuration:        p.duration("PORTAL_AUTH_DURATION", 5*time.Minute),
		PortalAuthRateLimitRPM:    p.integer("PORTAL_AUTH_RATE_LIMIT_RPM", 30),
		PortalExpirySweepSchedule: strings.TrimSpace(os.Getenv("PORTAL_EXPIRY_SWEEP_SCHEDULE")),

		IngestJWTSecret:   os.Getenv("INGEST_JWT_SECRET"),
		IngestJWTIssuer:   getEnv("INGEST_JWT_ISSUER", "omada-controller"),
		IngestJWTAudience: getEnv("INGEST_JWT_AUDIENCE", "omada-portal"),

		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "omada-captive-portal"),
		OTELEnvironment:           getEnv("OTEL_ENVIRONMENT", getEnv("APP_ENV", "development")),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  p.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        p.boolean("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        p.boolean("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           p.boolean("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: p.duration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"OMADA_CONTROLLER_URL", c.OmadaControllerURL},
		{"OMADA_CONTROLLER_USERNAME", c.OmadaControllerUsername},
		{"OMADA_CONTROLLER_PASSWORD", c.OmadaControllerPassword},
		{"PORTAL_USERNAME", c.PortalUsername},
		{"DATABASE_URL", c.DatabaseURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if c.OmadaControllerURL != "" {
		u, err := url.Parse(c.OmadaControllerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, errors.New("OMADA_CONTROLLER_URL must be an absolute http(s) URL"))
		}
	}
	if c.PortalPasswordHash == "" && c.PortalPassword == "" {
		errs = append(errs, errors.New("PORTAL_PASSWORD_HASH or PORTAL_PASSWORD is required"))
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	if c.PortalSessionTTL <= 0 {
		errs = append(errs, errors.New("PORTAL_SESSION_TTL must be positive"))
	}
	if c.PortalAuthDuration <= 0 {
		errs = append(errs, errors.New("PORTAL_AUTH_DURATION must be positive"))
	}
	if c.PortalAuthRateLimitRPM <= 0 {
		errs = append(errs, errors.New("PORTAL_AUTH_RATE_LIMIT_RPM must be positive"))
	}
	if c.OmadaControllerTimeout <= 0 {
		errs = append(errs, errors.New("OMADA_CONTROLLER_TIMEOUT must be positive"))
	}
	if c.OmadaTokenCacheTTL < 0 {
		errs = append(errs, errors.New("OMADA_TOKEN_CACHE_TTL must not be negative"))
	}
	if c.PortalExpirySweepSchedule != "" {
		if _, err := cron.ParseStandard(c.PortalExpirySweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("PORTAL_EXPIRY_SWEEP_SCHEDULE is not a valid cron expression: %w", err))
		}
	}
	if c.IngestJWTSecret != "" && len(c.IngestJWTSecret) < 32 {
		errs = append(errs, errors.New("INGEST_JWT_SECRET must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

func (c *Config) RedisEnabled() bool { return strings.TrimSpace(c.RedisAddr) != "" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// envParser keeps the first parse failure so load can report it once.
type envParser struct{ err error }

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return d
}

func (p *envParser) boolean(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return b
}

func (p *envParser) integer(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return n
}

func (p *envParser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
	}
}
