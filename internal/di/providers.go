package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/omada-captive-portal/internal/config"
	"github.com/sandeepkv93/omada-captive-portal/internal/controller"
	"github.com/sandeepkv93/omada-captive-portal/internal/database"
	"github.com/sandeepkv93/omada-captive-portal/internal/health"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/handler"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/middleware"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/router"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/repository"
	"github.com/sandeepkv93/omada-captive-portal/internal/security"
	"github.com/sandeepkv93/omada-captive-portal/internal/service"
)

func provideObservability(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logger, lp)
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

// provideRedisClient returns nil when REDIS_ADDR is unset.
func provideRedisClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, error) {
	if !cfg.RedisEnabled() {
		logger.Info("redis disabled, using in-process token cache and rate limiter")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func provideTokenCache(cfg *config.Config, client redis.UniversalClient) controller.TokenCacheStore {
	switch {
	case cfg.OmadaTokenCacheTTL <= 0:
		return controller.NewNoopTokenCacheStore()
	case client != nil:
		return controller.NewRedisTokenCacheStore(client, "omada_token")
	default:
		return controller.NewInMemoryTokenCacheStore()
	}
}

func provideControllerClient(cfg *config.Config, cache controller.TokenCacheStore) (*controller.Client, error) {
	return controller.NewClient(controller.Config{
		BaseURL:   cfg.OmadaControllerURL,
		VerifySSL: cfg.OmadaControllerVerifySSL,
		Username:  cfg.OmadaControllerUsername,
		Password:  cfg.OmadaControllerPassword,
		Timeout:   cfg.OmadaControllerTimeout,
		TokenTTL:  cfg.OmadaTokenCacheTTL,
	}, cache)
}

func provideCredentialVerifier(cfg *config.Config) (security.CredentialVerifier, error) {
	if cfg.PortalPasswordHash != "" {
		return security.NewStaticCredentialVerifier(cfg.PortalUsername, cfg.PortalPasswordHash)
	}
	return security.NewStaticCredentialVerifierFromPassword(cfg.PortalUsername, cfg.PortalPassword)
}

func providePortalService(cfg *config.Config, sessions repository.PortalSessionRepository, verifier security.CredentialVerifier, ctrl *controller.Client) *service.PortalService {
	return service.NewPortalService(sessions, verifier, ctrl, service.PortalConfig{
		SessionTTL:   cfg.PortalSessionTTL,
		AuthDuration: cfg.PortalAuthDuration,
	})
}

// provideIngestJWT leaves ingest open when no secret is configured.
func provideIngestJWT(cfg *config.Config) *security.JWTManager {
	if cfg.IngestJWTSecret == "" {
		return nil
	}
	return security.NewJWTManager(cfg.IngestJWTIssuer, cfg.IngestJWTAudience, cfg.IngestJWTSecret)
}

func provideAuthRateLimiter(cfg *config.Config, client redis.UniversalClient) router.AuthRateLimiterFunc {
	if client == nil {
		return middleware.NewRateLimiter(cfg.PortalAuthRateLimitRPM, time.Minute).Middleware()
	}
	return middleware.NewDistributedRateLimiter(
		middleware.NewRedisFixedWindowLimiter(client, "rl"),
		cfg.PortalAuthRateLimitRPM,
		time.Minute,
		middleware.FailOpen,
		"portal_auth",
	).Middleware()
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.DBChecker{DB: db}}
	if client != nil {
		checkers = append(checkers, health.RedisChecker{Client: client})
	}
	return health.NewProbeRunner(2*time.Second, 2*time.Second, checkers...)
}

func provideRouterDependencies(
	cfg *config.Config,
	inventory *handler.InventoryHandler,
	portal *handler.PortalHandler,
	ingestJWT *security.JWTManager,
	authLimiter router.AuthRateLimiterFunc,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		InventoryHandler: inventory,
		PortalHandler:    portal,
		IngestJWT:        ingestJWT,
		AuthRateLimitRPM: cfg.PortalAuthRateLimitRPM,
		AuthRateLimiter:  authLimiter,
		RequestTimeout:   cfg.HTTPRequestTimeout,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
	}
}

// provideExpirySweeper returns nil unless a sweep schedule is configured.
func provideExpirySweeper(cfg *config.Config, sessions repository.PortalSessionRepository) (*service.ExpirySweeper, error) {
	if cfg.PortalExpirySweepSchedule == "" {
		return nil, nil
	}
	return service.NewExpirySweeper(sessions, cfg.PortalExpirySweepSchedule)
}

func provideStopBackgroundTasks(client redis.UniversalClient) func() {
	return func() {
		if client != nil {
			_ = client.Close()
		}
	}
}
