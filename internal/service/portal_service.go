package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/controller"
	"github.com/sandeepkv93/omada-captive-portal/internal/domain"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/repository"
	"github.com/sandeepkv93/omada-captive-portal/internal/security"
)

const (
	DefaultSessionTTL   = 24 * time.Hour
	DefaultAuthDuration = 5 * time.Minute
)

// ControllerClient is the part of the Omada controller API the portal needs.
type ControllerClient interface {
	ObtainToken(ctx context.Context) (string, error)
	SubmitPortalAuth(ctx context.Context, token string, req controller.AuthRequest) error
	InvalidateToken(ctx context.Context) error
}

// CaptureParams are the query parameters the AP or gateway appends when redirecting a client.
type CaptureParams struct {
	ClientMAC   string
	APMAC       string
	GatewayMAC  string
	SSIDName    string
	VLANID      string
	RadioID     string
	Site        string
	RedirectURL string
}

type Credentials struct {
	Username  string
	Password  string
	ClientMAC string
}

type SessionStatus struct {
	IsAuthenticated bool
	ExpiresAt       time.Time
}

type PortalConfig struct {
	SessionTTL   time.Duration
	AuthDuration time.Duration
}

type PortalService struct {
	sessions     repository.PortalSessionRepository
	verifier     security.CredentialVerifier
	controller   ControllerClient
	sessionTTL   time.Duration
	authDuration time.Duration
	now          func() time.Time
}

func NewPortalService(
	sessions repository.PortalSessionRepository,
	verifier security.CredentialVerifier,
	ctrl ControllerClient,
	cfg PortalConfig,
) *PortalService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.AuthDuration <= 0 {
		cfg.AuthDuration = DefaultAuthDuration
	}
	return &PortalService{
		sessions:     sessions,
		verifier:     verifier,
		controller:   ctrl,
		sessionTTL:   cfg.SessionTTL,
		authDuration: cfg.AuthDuration,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// BeginSession creates or refreshes the session for the client MAC on every login page visit.
// Capture context and expiry are overwritten; authentication state is left as is.
func (s *PortalService) BeginSession(ctx context.Context, p CaptureParams) (*domain.PortalSession, error) {
	missing := missingFields("clientMac", p.ClientMAC, "site", p.Site)
	if len(missing) > 0 {
		observability.RecordPortalSessionBegin(ctx, "invalid")
		return nil, fmt.Errorf("%w: missing required parameters: %s", ErrValidation, strings.Join(missing, ", "))
	}
	session := &domain.PortalSession{
		ClientMAC:   strings.TrimSpace(p.ClientMAC),
		APMAC:       optional(p.APMAC),
		GatewayMAC:  optional(p.GatewayMAC),
		SSIDName:    optional(p.SSIDName),
		VLANID:      optional(p.VLANID),
		RadioID:     optional(p.RadioID),
		SiteName:    strings.TrimSpace(p.Site),
		RedirectURL: strings.TrimSpace(p.RedirectURL),
		ExpiresAt:   s.now().Add(s.sessionTTL),
	}
	if _, err := s.sessions.Upsert(ctx, session); err != nil {
		observability.RecordPortalSessionBegin(ctx, "error")
		return nil, fmt.Errorf("upsert portal session: %w", err)
	}
	observability.RecordPortalSessionBegin(ctx, "success")
	return session, nil
}

// Authenticate checks the end-user credentials, then authorizes the client on the controller
// with the system operator account. The controller token is stored on the session and never
// returned.
func (s *PortalService) Authenticate(ctx context.Context, c Credentials) error {
	ctx, span := observability.StartSpan(ctx, "portal.authenticate")
	defer span.End()

	session, err := s.findSession(ctx, c.ClientMAC)
	if err != nil {
		observability.RecordPortalAuth(ctx, outcomeFor(err))
		return err
	}
	if !s.verifier.Verify(ctx, c.Username, c.Password) {
		observability.RecordPortalAuth(ctx, "invalid_credentials")
		return ErrInvalidCredentials
	}

	token, err := s.controller.ObtainToken(ctx)
	if err != nil {
		slog.WarnContext(ctx, "controller token request failed", "client_mac", session.ClientMAC, "error", err.Error())
		observability.RecordPortalAuth(ctx, "controller_token_failed")
		return fmt.Errorf("%w: %w", ErrControllerToken, err)
	}

	if err := s.sessions.MarkAuthenticated(ctx, session.ClientMAC, token); err != nil {
		observability.RecordPortalAuth(ctx, outcomeFor(err))
		return fmt.Errorf("mark session authenticated: %w", err)
	}

	req := BuildAuthRequest(session, s.authDuration)
	if err := s.controller.SubmitPortalAuth(ctx, token, req); err != nil {
		slog.WarnContext(ctx, "controller portal auth failed", "client_mac", session.ClientMAC, "site", session.SiteName, "error", err.Error())
		if invErr := s.controller.InvalidateToken(ctx); invErr != nil {
			slog.WarnContext(ctx, "controller token invalidation failed", "error", invErr.Error())
		}
		observability.RecordPortalAuth(ctx, "controller_auth_failed")
		return fmt.Errorf("%w: %w", ErrControllerAuthFailed, err)
	}
	observability.RecordPortalAuth(ctx, "success")
	return nil
}

func (s *PortalService) Status(ctx context.Context, clientMAC string) (*SessionStatus, error) {
	session, err := s.findSession(ctx, clientMAC)
	if err != nil {
		return nil, err
	}
	// Expiry is advisory here; the sweeper is what acts on it.
	if session.IsAuthenticated && session.Expired(s.now()) {
		slog.DebugContext(ctx, "portal session past expiry", "client_mac", session.ClientMAC, "expires_at", session.ExpiresAt.UTC())
	}
	return &SessionStatus{IsAuthenticated: session.IsAuthenticated, ExpiresAt: session.ExpiresAt.UTC()}, nil
}

// Logout clears the authenticated flag. The token and capture context stay on the session.
func (s *PortalService) Logout(ctx context.Context, clientMAC string) error {
	if strings.TrimSpace(clientMAC) == "" {
		observability.RecordPortalLogout(ctx, "invalid")
		return fmt.Errorf("%w: missing required fields: clientMac", ErrValidation)
	}
	if err := s.sessions.MarkUnauthenticated(ctx, strings.TrimSpace(clientMAC)); err != nil {
		observability.RecordPortalLogout(ctx, outcomeFor(err))
		return err
	}
	observability.RecordPortalLogout(ctx, "success")
	return nil
}

// BuildAuthRequest shapes the extended-portal authorization for the controller. Wireless
// sessions send the AP, SSID and radio; wired sessions send the gateway and VLAN.
func BuildAuthRequest(session *domain.PortalSession, duration time.Duration) controller.AuthRequest {
	req := controller.AuthRequest{
		ClientMAC: session.ClientMAC,
		Site:      session.SiteName,
		Time:      duration.Milliseconds(),
		AuthType:  controller.AuthTypeExternalPortal,
	}
	if session.Wireless() {
		req.APMAC = valueOf(session.APMAC)
		req.SSIDName = valueOf(session.SSIDName)
		req.RadioID = valueOf(session.RadioID)
		return req
	}
	req.GatewayMAC = valueOf(session.GatewayMAC)
	req.VID = valueOf(session.VLANID)
	return req
}

func (s *PortalService) findSession(ctx context.Context, clientMAC string) (*domain.PortalSession, error) {
	mac := strings.TrimSpace(clientMAC)
	if mac == "" {
		return nil, ErrSessionNotFound
	}
	return s.sessions.FindByClientMAC(ctx, mac)
}

func outcomeFor(err error) string {
	if errors.Is(err, ErrSessionNotFound) {
		return "session_not_found"
	}
	return "error"
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// valueOf copies p so the request always carries the field, empty when the session has none.
func valueOf(p *string) *string {
	v := ""
	if p != nil {
		v = *p
	}
	return &v
}
