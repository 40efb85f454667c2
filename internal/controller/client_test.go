package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	loginStatus int
	loginBody   string
	authStatus  int

	logins   atomic.Int32
	session  atomic.Pointer[string]
	lastAuth atomic.Pointer[map[string]any]
	lastCSRF atomic.Pointer[string]
}

func (f *fakeController) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/omadac/api/v2/hotspot/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login body: %v", err)
		}
		if body["name"] != "operator" || body["password"] != "operator-pass" {
			t.Errorf("unexpected login body: %+v", body)
		}
		sid := fmt.Sprintf("sess-%d", f.logins.Load())
		f.session.Store(&sid)
		http.SetCookie(w, &http.Cookie{Name: "TPOMADA_SESSIONID", Value: sid, Path: "/"})
		w.WriteHeader(f.loginStatus)
		_, _ = w.Write([]byte(f.loginBody))
	})
	mux.HandleFunc("/omadac/api/v2/hotspot/extPortal/auth", func(w http.ResponseWriter, r *http.Request) {
		current := f.session.Load()
		if c, err := r.Cookie("TPOMADA_SESSIONID"); err != nil || current == nil || c.Value != *current {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		csrf := r.Header.Get("Csrf-Token")
		f.lastCSRF.Store(&csrf)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode auth body: %v", err)
		}
		f.lastAuth.Store(&body)
		w.WriteHeader(f.authStatus)
		_, _ = w.Write([]byte(`{"errorCode":0}`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeController, tls bool, cache TokenCacheStore, ttl time.Duration) *Client {
	t.Helper()
	var srv *httptest.Server
	if tls {
		srv = httptest.NewTLSServer(f.handler(t))
	} else {
		srv = httptest.NewServer(f.handler(t))
	}
	t.Cleanup(srv.Close)
	return newClientFor(t, srv.URL, cache, ttl)
}

func newClientFor(t *testing.T, serverURL string, cache TokenCacheStore, ttl time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:   serverURL + "/omadac",
		VerifySSL: false,
		Username:  "operator",
		Password:  "operator-pass",
		Timeout:   2 * time.Second,
		TokenTTL:  ttl,
	}, cache)
	require.NoError(t, err)
	return c
}

func TestObtainTokenSuccess(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"msg":"Success.","result":{"token":"tok-123"}}`, authStatus: http.StatusOK}
	c := newTestClient(t, f, true, nil, 0)

	token, err := c.ObtainToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestObtainTokenFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non 200", status: http.StatusUnauthorized, body: `{"errorCode":0,"result":{"token":"tok"}}`},
		{name: "error code", status: http.StatusOK, body: `{"errorCode":-30109,"msg":"Invalid username or password."}`},
		{name: "missing error code", status: http.StatusOK, body: `{"result":{"token":"tok"}}`},
		{name: "missing result", status: http.StatusOK, body: `{"errorCode":0}`},
		{name: "empty token", status: http.StatusOK, body: `{"errorCode":0,"result":{"token":""}}`},
		{name: "malformed json", status: http.StatusOK, body: `<html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeController{loginStatus: tc.status, loginBody: tc.body, authStatus: http.StatusOK}
			c := newTestClient(t, f, false, nil, 0)
			token, err := c.ObtainToken(context.Background())
			require.ErrorIs(t, err, ErrNoToken)
			assert.Empty(t, token)
		})
	}
}

func TestObtainTokenTransportErrorIsNoToken(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1/", Username: "u", Password: "p", Timeout: 500 * time.Millisecond}, nil)
	require.NoError(t, err)
	_, err = c.ObtainToken(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}

func TestObtainTokenUsesCacheWhenEnabled(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"cached"}}`, authStatus: http.StatusOK}
	c := newTestClient(t, f, false, NewInMemoryTokenCacheStore(), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		token, err := c.ObtainToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "cached", token)
	}
	assert.Equal(t, int32(1), f.logins.Load())

	require.NoError(t, c.InvalidateToken(ctx))
	_, err := c.ObtainToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestObtainTokenWithoutCacheLogsInEveryTime(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"fresh"}}`, authStatus: http.StatusOK}
	c := newTestClient(t, f, false, NewInMemoryTokenCacheStore(), 0)
	for i := 0; i < 2; i++ {
		_, err := c.ObtainToken(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestSubmitPortalAuthSendsTokenAndPayload(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"tok-9"}}`, authStatus: http.StatusOK}
	c := newTestClient(t, f, false, nil, 0)
	ctx := context.Background()

	token, err := c.ObtainToken(ctx)
	require.NoError(t, err)

	ap, ssid, radio := "AP-MAC", "Guest", "1"
	err = c.SubmitPortalAuth(ctx, token, AuthRequest{
		ClientMAC: "CLIENT-MAC",
		Site:      "Default",
		Time:      300000,
		AuthType:  AuthTypeExternalPortal,
		APMAC:     &ap,
		SSIDName:  &ssid,
		RadioID:   &radio,
	})
	require.NoError(t, err)

	require.NotNil(t, f.lastCSRF.Load())
	assert.Equal(t, "tok-9", *f.lastCSRF.Load())
	body := *f.lastAuth.Load()
	assert.Equal(t, "CLIENT-MAC", body["clientMac"])
	assert.Equal(t, "AP-MAC", body["apMac"])
	assert.EqualValues(t, 300000, body["time"])
	assert.EqualValues(t, 4, body["authType"])
	assert.NotContains(t, body, "gatewayMac")
	assert.NotContains(t, body, "vid")
}

func TestSubmitPortalAuthNon200IsRejected(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"tok"}}`, authStatus: http.StatusForbidden}
	c := newTestClient(t, f, false, nil, 0)
	ctx := context.Background()
	token, err := c.ObtainToken(ctx)
	require.NoError(t, err)

	err = c.SubmitPortalAuth(ctx, token, AuthRequest{ClientMAC: "m", Site: "s", AuthType: AuthTypeExternalPortal})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthRejected))
	assert.Contains(t, err.Error(), "status 403")
}

func TestCachedTokenCarriesSessionCookieToOtherClients(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"shared"}}`, authStatus: http.StatusOK}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cache := NewInMemoryTokenCacheStore()
	first := newClientFor(t, srv.URL, cache, time.Minute)
	second := newClientFor(t, srv.URL, cache, time.Minute)
	ctx := context.Background()
	req := AuthRequest{ClientMAC: "m", Site: "s", AuthType: AuthTypeExternalPortal}

	token, err := first.ObtainToken(ctx)
	require.NoError(t, err)
	require.NoError(t, first.SubmitPortalAuth(ctx, token, req))

	token, err = second.ObtainToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared", token)
	require.NoError(t, second.SubmitPortalAuth(ctx, token, req))
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestCachedTokenWithoutSessionIsRejectedByController(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"t"}}`, authStatus: http.StatusOK}
	c := newTestClient(t, f, false, nil, 0)
	err := c.SubmitPortalAuth(context.Background(), "t", AuthRequest{ClientMAC: "m", Site: "s", AuthType: AuthTypeExternalPortal})
	require.ErrorIs(t, err, ErrAuthRejected)
	assert.Contains(t, err.Error(), "status 401")
}

func TestObtainTokenUnreadableCacheEntryLogsIn(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"fresh"}}`, authStatus: http.StatusOK}
	cache := NewInMemoryTokenCacheStore()
	c := newTestClient(t, f, false, cache, time.Minute)
	require.NoError(t, cache.Set(context.Background(), c.cacheKey, "not-json", time.Minute))

	token, err := c.ObtainToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestObtainTokenLoginSurvivesCallerCancel(t *testing.T) {
	f := &fakeController{loginStatus: http.StatusOK, loginBody: `{"errorCode":0,"result":{"token":"tok"}}`, authStatus: http.StatusOK}
	c := newTestClient(t, f, false, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	token, err := c.ObtainToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://omada.local:8043":          "https://omada.local:8043/",
		"https://omada.local:8043/omadac":   "https://omada.local:8043/omadac/",
		"https://omada.local/omadac/?x=1#f": "https://omada.local/omadac/",
	}
	for in, want := range cases {
		u, err := normalizeBaseURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, u.String())
	}
	_, err := normalizeBaseURL("omada.local")
	assert.Error(t, err)
}
