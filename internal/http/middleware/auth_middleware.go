package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandeepkv93/omada-captive-portal/internal/http/response"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "ingest_claims"
)

// IngestAuth requires a bearer ingest token on telemetry pushes. A nil manager leaves the
// endpoints open.
func IngestAuth(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtMgr == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var raw string
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				raw = strings.TrimSpace(auth[7:])
			}
			if raw == "" {
				observability.RecordIngestTokenValidation(r.Context(), "missing")
				response.Error(w, r, http.StatusUnauthorized, "missing ingest token")
				return
			}
			claims, err := jwtMgr.ParseIngestToken(raw)
			if err != nil {
				observability.RecordIngestTokenValidation(r.Context(), "invalid")
				response.Error(w, r, http.StatusUnauthorized, "invalid ingest token")
				return
			}
			observability.RecordIngestTokenValidation(r.Context(), "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}
