package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/config"
	"github.com/sandeepkv93/omada-captive-portal/internal/database"
	"github.com/sandeepkv93/omada-captive-portal/internal/health"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/service"

	"gorm.io/gorm"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	DB            *gorm.DB
	Sweeper       *service.ExpirySweeper
	Readiness     *health.ProbeRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	stopBackgroundTasks func()
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	sweeper *service.ExpirySweeper,
	readiness *health.ProbeRunner,
	stopBackgroundTasks func(),
) *App {
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Observability:                runtime,
		DB:                           db,
		Sweeper:                      sweeper,
		Readiness:                    readiness,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		stopBackgroundTasks:          stopBackgroundTasks,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.Sweeper != nil {
		a.Sweeper.Start()
		a.Logger.Info("portal session expiry sweeper started", "schedule", a.Config.PortalExpirySweepSchedule)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", ln.Addr().String())
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown requested")
	case err := <-serveErr:
		runErr = err
		if err != nil {
			a.Logger.Error("http server failed", "error", err.Error())
		}
	}
	return errors.Join(runErr, a.Shutdown())
}

// Shutdown drains http first, then background jobs, the database and telemetry.
func (a *App) Shutdown() error {
	overall, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
	defer cancel()
	var errs []error

	drainCtx, drainCancel := context.WithTimeout(overall, a.ShutdownHTTPDrainTimeout)
	if err := a.Server.Shutdown(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	drainCancel()

	if a.Sweeper != nil {
		if err := a.Sweeper.Stop(overall); err != nil {
			errs = append(errs, fmt.Errorf("stop expiry sweeper: %w", err))
		}
	}
	a.StopBackgroundTasks()

	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	obsCtx, obsCancel := context.WithTimeout(overall, a.ShutdownObservabilityTimeout)
	if err := a.Observability.Shutdown(obsCtx); err != nil {
		errs = append(errs, fmt.Errorf("observability shutdown: %w", err))
	}
	obsCancel()

	if err := errors.Join(errs...); err != nil {
		a.Logger.Error("shutdown finished with errors", "error", err.Error())
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}

func (a *App) StopBackgroundTasks() {
	if a.stopBackgroundTasks != nil {
		a.stopBackgroundTasks()
	}
}
