package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/config"
	"github.com/sandeepkv93/omada-captive-portal/internal/controller"
	"github.com/sandeepkv93/omada-captive-portal/internal/database"
	"github.com/sandeepkv93/omada-captive-portal/internal/health"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/handler"
	"github.com/sandeepkv93/omada-captive-portal/internal/http/router"
	"github.com/sandeepkv93/omada-captive-portal/internal/repository"
	"github.com/sandeepkv93/omada-captive-portal/internal/security"
	"github.com/sandeepkv93/omada-captive-portal/internal/service"
)

const (
	portalUser     = "guest"
	portalPassword = "guest-pass"
	ingestSecret   = "integration-secret-0123456789abcdef"
)

// fakeOmada plays the controller's hotspot operator API.
type fakeOmada struct {
	mu         sync.Mutex
	rejectAuth bool
	logins     int
	auths      []map[string]any
}

func (f *fakeOmada) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /omadac/api/v2/hotspot/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "TPOMADA_SESSIONID", Value: "it-session", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errorCode":0,"msg":"Hotspot log in successfully.","result":{"token":"it-token"}}`))
	})
	mux.HandleFunc("POST /omadac/api/v2/hotspot/extPortal/auth", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, err := r.Cookie("TPOMADA_SESSIONID"); err != nil || r.Header.Get("Csrf-Token") != "it-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.auths = append(f.auths, body)
		reject := f.rejectAuth
		f.mu.Unlock()
		if reject {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errorCode":-41500,"msg":"Auth failed."}`))
			return
		}
		_, _ = w.Write([]byte(`{"errorCode":0,"msg":"Success."}`))
	})
	return mux
}

func (f *fakeOmada) submitted() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.auths...)
}

type portalServerOptions struct {
	ingestJWT    bool
	authRPM      int
	tokenTTL     time.Duration
	readyChecker bool
}

type portalServer struct {
	baseURL string
	client  *http.Client
	omada   *fakeOmada
	jwt     *security.JWTManager
}

func newPortalTestServer(t *testing.T, opts portalServerOptions) *portalServer {
	t.Helper()
	cfg := &config.Config{
		DBDriver:    "sqlite",
		DatabaseURL: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared&_foreign_keys=on",
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	omada := &fakeOmada{}
	omadaSrv := httptest.NewTLSServer(omada.handler())
	t.Cleanup(omadaSrv.Close)

	var cache controller.TokenCacheStore = controller.NewNoopTokenCacheStore()
	if opts.tokenTTL > 0 {
		cache = controller.NewInMemoryTokenCacheStore()
	}
	ctrl, err := controller.NewClient(controller.Config{
		BaseURL:   omadaSrv.URL + "/omadac",
		VerifySSL: false,
		Username:  "operator",
		Password:  "operator-pass",
		Timeout:   2 * time.Second,
		TokenTTL:  opts.tokenTTL,
	}, cache)
	if err != nil {
		t.Fatalf("controller client: %v", err)
	}
	verifier, err := security.NewStaticCredentialVerifierFromPassword(portalUser, portalPassword)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	inventory := service.NewInventoryService(repository.NewDeviceRepository(db), repository.NewClientRepository(db))
	portal := service.NewPortalService(repository.NewPortalSessionRepository(db), verifier, ctrl, service.PortalConfig{})

	if opts.authRPM == 0 {
		opts.authRPM = 1000
	}
	dep := router.Dependencies{
		InventoryHandler: handler.NewInventoryHandler(inventory),
		PortalHandler:    handler.NewPortalHandler(portal),
		AuthRateLimitRPM: opts.authRPM,
		RequestTimeout:   5 * time.Second,
	}
	var jwtMgr *security.JWTManager
	if opts.ingestJWT {
		jwtMgr = security.NewJWTManager("omada-controller", "omada-portal", ingestSecret)
		dep.IngestJWT = jwtMgr
	}
	if opts.readyChecker {
		dep.Readiness = health.NewProbeRunner(time.Second, 0, health.DBChecker{DB: db})
	}

	srv := httptest.NewServer(router.NewRouter(dep))
	t.Cleanup(srv.Close)
	return &portalServer{
		baseURL: srv.URL,
		client:  &http.Client{Timeout: 5 * time.Second},
		omada:   omada,
		jwt:     jwtMgr,
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return send(t, client, req)
}

func doForm(t *testing.T, client *http.Client, url string, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return send(t, client, req)
}

func doRawText(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(b)
}

func send(t *testing.T, client *http.Client, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env map[string]any
	if len(b) > 0 {
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("decode %s %s response %q: %v", req.Method, req.URL.Path, string(b), err)
		}
	}
	return resp, env
}

func captureAuditEvents(t *testing.T, fn func()) []map[string]any {
	t.Helper()
	var logBuf safeBuffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	defer slog.SetDefault(previous)

	fn()
	events := make([]map[string]any, 0)
	for _, line := range strings.Split(logBuf.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if msg, _ := event["msg"].(string); msg == "audit" {
			events = append(events, event)
		}
	}
	return events
}

func requireAuditEvent(t *testing.T, events []map[string]any, eventName, outcome string) {
	t.Helper()
	for _, event := range events {
		gotName, _ := event["event"].(string)
		gotOutcome, _ := event["outcome"].(string)
		if gotName == eventName && gotOutcome == outcome {
			return
		}
	}
	t.Fatalf("expected audit event=%q outcome=%q, got events=%#v", eventName, outcome, events)
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
