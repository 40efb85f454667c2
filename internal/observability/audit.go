package observability

import (
	"log/slog"
	"net"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Audit emits one "audit" record per security-relevant portal action.
func Audit(r *http.Request, event string, attrs ...any) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)
	if requestID == "" {
		requestID = r.Header.Get("X-Request-Id")
	}
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_ip", remote,
		"request_id", requestID,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		base = append(base, "trace_id", sc.TraceID().String())
	}
	base = append(base, attrs...)
	slog.InfoContext(ctx, "audit", base...)
}
