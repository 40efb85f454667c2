package controller

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/observability"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const (
	loginPath      = "api/v2/hotspot/login"
	portalAuthPath = "api/v2/hotspot/extPortal/auth"

	// AuthTypeExternalPortal is the controller's authType for external portal servers.
	AuthTypeExternalPortal = 4

	maxResponseBody = 1 << 20
)

var (
	ErrNoToken      = errors.New("controller returned no token")
	ErrAuthRejected = errors.New("controller rejected portal authentication")
)

type Config struct {
	BaseURL   string
	VerifySSL bool
	Username  string
	Password  string
	Timeout   time.Duration
	// TokenTTL enables token reuse across authentications when positive.
	TokenTTL time.Duration
}

// AuthRequest is the extended-portal authorization body. Wireless requests carry the AP
// fields, wired requests carry the gateway fields; the unused group stays nil and is omitted.
type AuthRequest struct {
	ClientMAC  string  `json:"clientMac"`
	Site       string  `json:"site"`
	Time       int64   `json:"time"`
	AuthType   int     `json:"authType"`
	APMAC      *string `json:"apMac,omitempty"`
	SSIDName   *string `json:"ssidName,omitempty"`
	RadioID    *string `json:"radioId,omitempty"`
	GatewayMAC *string `json:"gatewayMac,omitempty"`
	VID        *string `json:"vid,omitempty"`
}

type loginResponse struct {
	ErrorCode *int   `json:"errorCode"`
	Msg       string `json:"msg"`
	Result    *struct {
		Token string `json:"token"`
	} `json:"result"`
}

type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	tokenTTL   time.Duration
	httpClient *http.Client
	cache      TokenCacheStore
	cacheKey   string
	group      singleflight.Group
}

func NewClient(cfg Config, cache TokenCacheStore) (*Client, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opted out for self-signed controllers
	}
	// The hotspot login also issues a session cookie that the auth call must present.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cache == nil {
		cache = NewNoopTokenCacheStore()
	}
	sum := sha256.Sum256([]byte(base.String() + "\x00" + cfg.Username))
	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		tokenTTL: cfg.TokenTTL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
			Jar:       jar,
		},
		cache:    cache,
		cacheKey: hex.EncodeToString(sum[:16]),
	}, nil
}

// cachedSession is what the token cache holds. The controller ties the token to the login
// session cookie, so both travel together between replicas.
type cachedSession struct {
	Token   string         `json:"token"`
	Cookies []cachedCookie `json:"cookies,omitempty"`
}

type cachedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ObtainToken logs in with the configured operator account. Any failure, including transport
// errors, is reported as ErrNoToken so callers can treat it as a plain authorization failure.
func (c *Client) ObtainToken(ctx context.Context) (string, error) {
	if c.tokenTTL > 0 {
		if token, ok := c.restoreSession(ctx); ok {
			observability.RecordControllerCall(ctx, "obtain_token", "cache_hit")
			return token, nil
		}
	}

	// Waiters share this login, so one caller going away must not fail the rest.
	loginCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(c.cacheKey, func() (any, error) {
		return c.login(loginCtx)
	})
	if err != nil {
		observability.RecordControllerCall(ctx, "obtain_token", "failure")
		return "", err
	}
	token := v.(string)
	observability.RecordControllerCall(ctx, "obtain_token", "success")
	if c.tokenTTL > 0 {
		c.storeSession(ctx, token)
	}
	return token, nil
}

func (c *Client) restoreSession(ctx context.Context) (string, bool) {
	raw, ok, err := c.cache.Get(ctx, c.cacheKey)
	if err != nil {
		slog.WarnContext(ctx, "controller token cache read failed", "error", err.Error())
		return "", false
	}
	if !ok {
		return "", false
	}
	var entry cachedSession
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Token == "" {
		slog.WarnContext(ctx, "controller token cache entry unreadable, logging in again")
		return "", false
	}
	if len(entry.Cookies) > 0 {
		cookies := make([]*http.Cookie, 0, len(entry.Cookies))
		for _, ck := range entry.Cookies {
			cookies = append(cookies, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
		}
		c.httpClient.Jar.SetCookies(c.authURL(), cookies)
	}
	return entry.Token, true
}

func (c *Client) storeSession(ctx context.Context, token string) {
	entry := cachedSession{Token: token}
	for _, ck := range c.httpClient.Jar.Cookies(c.authURL()) {
		entry.Cookies = append(entry.Cookies, cachedCookie{Name: ck.Name, Value: ck.Value})
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		slog.WarnContext(ctx, "controller token cache encode failed", "error", err.Error())
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey, string(raw), c.tokenTTL); err != nil {
		slog.WarnContext(ctx, "controller token cache write failed", "error", err.Error())
	}
}

// InvalidateToken drops a cached token so the next ObtainToken logs in again.
func (c *Client) InvalidateToken(ctx context.Context) error {
	return c.cache.Delete(ctx, c.cacheKey)
}

func (c *Client) SubmitPortalAuth(ctx context.Context, token string, req AuthRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode portal auth request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(portalAuthPath), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build portal auth request: %w", err)
	}
	httpReq.Header.Set("Csrf-Token", token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observability.RecordControllerCall(ctx, "submit_portal_auth", "transport_error")
		return fmt.Errorf("%w: %w", ErrAuthRejected, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode != http.StatusOK {
		observability.RecordControllerCall(ctx, "submit_portal_auth", "rejected")
		return fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
	}
	observability.RecordControllerCall(ctx, "submit_portal_auth", "success")
	return nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"name": c.username, "password": c.password})
	if err != nil {
		return "", fmt.Errorf("%w: encode login: %w", ErrNoToken, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(loginPath), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build login request: %w", ErrNoToken, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return "", fmt.Errorf("%w: login status %d", ErrNoToken, resp.StatusCode)
	}
	var payload loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode login response: %w", ErrNoToken, err)
	}
	if payload.ErrorCode == nil || *payload.ErrorCode != 0 {
		return "", fmt.Errorf("%w: login error code %s", ErrNoToken, formatErrorCode(payload.ErrorCode, payload.Msg))
	}
	if payload.Result == nil || payload.Result.Token == "" {
		return "", fmt.Errorf("%w: login response has no token", ErrNoToken)
	}
	return payload.Result.Token, nil
}

func (c *Client) authURL() *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: portalAuthPath})
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

func normalizeBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse controller url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("controller url must be absolute http(s), got %q", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func formatErrorCode(code *int, msg string) string {
	if code == nil {
		return "missing"
	}
	if msg == "" {
		return fmt.Sprintf("%d", *code)
	}
	return fmt.Sprintf("%d (%s)", *code, msg)
}
