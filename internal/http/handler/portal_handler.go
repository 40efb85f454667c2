package handler

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/http/response"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templateFS, "templates/portal_login.html"))

const (
	msgAuthSuccess        = "Authentication successful continue browsing"
	msgInvalidCredentials = "Invalid username or password you cannot browse this site."
	msgControllerToken    = "Failed to authenticate with Omada Controller"
	msgControllerAuth     = "Controller authentication failed"
	msgSessionNotFound    = "Session not found"
)

type PortalHandler struct {
	svc service.PortalServiceInterface
}

func NewPortalHandler(svc service.PortalServiceInterface) *PortalHandler {
	return &PortalHandler{svc: svc}
}

type loginPageData struct {
	ClientMAC   string
	SiteName    string
	RedirectURL string
	AuthAction  string
}

// LoginPage records the capture parameters and renders the credential form.
func (h *PortalHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session, err := h.svc.BeginSession(r.Context(), service.CaptureParams{
		ClientMAC:   q.Get("clientMac"),
		APMAC:       q.Get("apMac"),
		GatewayMAC:  q.Get("gatewayMac"),
		SSIDName:    q.Get("ssidName"),
		VLANID:      q.Get("vid"),
		RadioID:     q.Get("radioId"),
		Site:        q.Get("site"),
		RedirectURL: q.Get("redirectUrl"),
	})
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	action := "/api/portal/auth/"
	if r.URL.RawQuery != "" {
		action += "?" + r.URL.RawQuery
	}
	var buf bytes.Buffer
	if err := loginTemplate.Execute(&buf, loginPageData{
		ClientMAC:   session.ClientMAC,
		SiteName:    session.SiteName,
		RedirectURL: session.RedirectURL,
		AuthAction:  action,
	}); err != nil {
		response.Error(w, r, http.StatusBadRequest, "render login page: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Authenticate takes credentials from the form; clientMac falls back to the query string.
func (h *PortalHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid form body: "+err.Error())
		return
	}
	clientMAC := strings.TrimSpace(r.PostForm.Get("clientMac"))
	if clientMAC == "" {
		clientMAC = strings.TrimSpace(r.URL.Query().Get("clientMac"))
	}
	err := h.svc.Authenticate(r.Context(), service.Credentials{
		Username:  r.PostForm.Get("username"),
		Password:  r.PostForm.Get("password"),
		ClientMAC: clientMAC,
	})
	switch {
	case err == nil:
		observability.Audit(r, "portal.auth", "client_mac", clientMAC, "outcome", "success")
		response.Success(w, r, http.StatusOK, map[string]any{"message": msgAuthSuccess})
	case errors.Is(err, service.ErrSessionNotFound):
		observability.Audit(r, "portal.auth", "client_mac", clientMAC, "outcome", "session_not_found")
		response.Error(w, r, http.StatusNotFound, msgSessionNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		observability.Audit(r, "portal.auth", "client_mac", clientMAC, "outcome", "invalid_credentials")
		response.Error(w, r, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, service.ErrControllerToken):
		observability.Audit(r, "portal.auth", "client_mac", clientMAC, "outcome", "controller_token_failed")
		response.Error(w, r, http.StatusUnauthorized, msgControllerToken)
	case errors.Is(err, service.ErrControllerAuthFailed):
		observability.Audit(r, "portal.auth", "client_mac", clientMAC, "outcome", "controller_auth_failed")
		response.Error(w, r, http.StatusBadRequest, msgControllerAuth)
	default:
		observability.Audit(r, "portal.auth", "client_mac", clientMAC, "outcome", "error")
		response.Error(w, r, http.StatusBadRequest, err.Error())
	}
}

func (h *PortalHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context(), r.URL.Query().Get("clientMac"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Error(w, r, http.StatusNotFound, msgSessionNotFound)
			return
		}
		response.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	response.Success(w, r, http.StatusOK, map[string]any{
		"is_authenticated": status.IsAuthenticated,
		"expires_at":       status.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type logoutRequest struct {
	ClientMAC string `json:"clientMac"`
}

func (h *PortalHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.svc.Logout(r.Context(), in.ClientMAC); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Error(w, r, http.StatusNotFound, msgSessionNotFound)
			return
		}
		response.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	observability.Audit(r, "portal.logout", "client_mac", in.ClientMAC)
	response.Success(w, r, http.StatusOK, nil)
}
