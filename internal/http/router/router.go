package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/omada-captive-portal/internal/health"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/handler"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/middleware"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/response"
	"github.com/sandeepkv93/omada-captive-portal/internal/security"
)

type Dependencies struct {
	InventoryHandler *handler.InventoryHandler
	PortalHandler    *handler.PortalHandler
	// IngestJWT protects telemetry pushes when set.
	IngestJWT        *security.JWTManager
	AuthRateLimitRPM int
	AuthRateLimiter  AuthRateLimiterFunc
	RequestTimeout   time.Duration
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool
}

type AuthRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(dep.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, r, http.StatusOK, map[string]any{"state": "live"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.Success(w, r, http.StatusOK, map[string]any{"state": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.Success(w, r, http.StatusOK, map[string]any{"state": "ready", "checks": results})
			return
		}
		response.ErrorWithFields(w, r, http.StatusServiceUnavailable, "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.IngestAuth(dep.IngestJWT))
			r.Post("/devices/update/", dep.InventoryHandler.UpdateDevice)
			r.Post("/clients/update/", dep.InventoryHandler.UpdateClient)
		})
		r.Get("/devices/", dep.InventoryHandler.ListDevices)
		r.Get("/clients/", dep.InventoryHandler.ListClients)

		r.Route("/portal", func(r chi.Router) {
			r.Get("/login/", dep.PortalHandler.LoginPage)
			r.With(authLimiter).Post("/login/", dep.PortalHandler.Authenticate)
			r.With(authLimiter).Post("/auth/", dep.PortalHandler.Authenticate)
			r.Get("/status/", dep.PortalHandler.Status)
			r.Post("/logout/", dep.PortalHandler.Logout)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
