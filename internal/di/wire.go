//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/omada-captive-portal/internal/app"
	"github.com/sandeepkv93/omada-captive-portal/internal/config"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/handler"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/router"
	"github.com/sandeepkv93/omada-captive-portal/internal/repository"
	"github.com/sandeepkv93/omada-captive-portal/internal/service"
)

var repositorySet = wire.NewSet(
	repository.NewDeviceRepository,
	repository.NewClientRepository,
	repository.NewPortalSessionRepository,
)

var serviceSet = wire.NewSet(
	provideTokenCache,
	provideControllerClient,
	provideCredentialVerifier,
	service.NewInventoryService,
	wire.Bind(new(service.InventoryServiceInterface), new(*service.InventoryService)),
	providePortalService,
	wire.Bind(new(service.PortalServiceInterface), new(*service.PortalService)),
	provideExpirySweeper,
)

var httpSet = wire.NewSet(
	handler.NewInventoryHandler,
	handler.NewPortalHandler,
	provideIngestJWT,
	provideAuthRateLimiter,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*app.App, error) {
	wire.Build(
		provideObservability,
		provideDB,
		provideRedisClient,
		repositorySet,
		serviceSet,
		httpSet,
		provideStopBackgroundTasks,
		app.New,
	)
	return nil, nil
}
