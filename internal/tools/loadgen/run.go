package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        uint64
	// Token is sent as a bearer token on ingest pushes.
	Token string
}

type Result struct {
	TotalRequests int64
	Failures      int64
	StatusClasses map[string]int64
	Elapsed       time.Duration
}

type step struct {
	method      string
	path        string
	contentType string
	body        string
}

// Run drives traffic against the portal API at a fixed rate until Duration elapses.
func Run(ctx context.Context, cfg Config) (Result, error) {
	profile := normalizeProfile(cfg.Profile)
	if !validProfile(profile) {
		return Result{}, fmt.Errorf("unknown profile %q", cfg.Profile)
	}
	if cfg.RPS <= 0 || cfg.Concurrency <= 0 || cfg.Duration <= 0 {
		return Result{}, fmt.Errorf("rps, concurrency and duration must be positive")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return Result{}, fmt.Errorf("invalid base url: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		total, failures atomic.Int64
		mu              sync.Mutex
		classes         = map[string]int64{}
		rng             = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
		rngMu           sync.Mutex
	)
	client := &http.Client{Timeout: 10 * time.Second}
	jobs := make(chan step)
	started := time.Now()

	// In-flight requests run on the parent context so the deadline only stops new work.
	var g errgroup.Group
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			for s := range jobs {
				status, err := send(ctx, client, base, cfg.Token, s)
				total.Add(1)
				class := "error"
				if err == nil {
					class = classifyStatusClass(status)
				}
				if err != nil || status >= 500 {
					failures.Add(1)
				}
				mu.Lock()
				classes[class]++
				mu.Unlock()
			}
			return nil
		})
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	seq := 0
produce:
	for {
		select {
		case <-runCtx.Done():
			break produce
		case <-ticker.C:
			rngMu.Lock()
			s := pickStep(profile, rng, seq)
			rngMu.Unlock()
			seq++
			select {
			case jobs <- s:
			case <-runCtx.Done():
				break produce
			}
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{
		TotalRequests: total.Load(),
		Failures:      failures.Load(),
		StatusClasses: classes,
		Elapsed:       time.Since(started),
	}, nil
}

func send(ctx context.Context, client *http.Client, base, token string, s step) (int, error) {
	var body io.Reader
	if s.body != "" {
		body = bytes.NewBufferString(s.body)
	}
	req, err := http.NewRequestWithContext(ctx, s.method, base+s.path, body)
	if err != nil {
		return 0, err
	}
	if s.contentType != "" {
		req.Header.Set("Content-Type", s.contentType)
	}
	if token != "" && strings.HasSuffix(s.path, "/update/") {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func pickStep(profile string, rng *rand.Rand, seq int) step {
	switch profile {
	case "ingest":
		return ingestStep(rng, seq)
	case "portal":
		return portalStep(rng)
	case "read":
		return readStep(rng)
	}
	switch n := rng.IntN(10); {
	case n < 4:
		return ingestStep(rng, seq)
	case n < 7:
		return portalStep(rng)
	default:
		return readStep(rng)
	}
}

func ingestStep(rng *rand.Rand, seq int) step {
	dev := rng.IntN(8)
	if seq%2 == 0 {
		return step{
			method:      http.MethodPost,
			path:        "/api/devices/update/",
			contentType: "application/json",
			body: fmt.Sprintf(`{"device_id":"loadgen-ap-%d","name":"AP %d","mac_address":"AA-BB-CC-00-00-%02X","model":"EAP225","firmware_version":"5.1.0","status":"online"}`,
				dev, dev, dev),
		}
	}
	cli := rng.IntN(64)
	return step{
		method:      http.MethodPost,
		path:        "/api/clients/update/",
		contentType: "application/json",
		body: fmt.Sprintf(`{"client_id":"loadgen-client-%d","mac_address":"11-22-33-44-55-%02X","device_id":"loadgen-ap-%d"}`,
			cli, cli, dev),
	}
}

func portalStep(rng *rand.Rand) step {
	mac := fmt.Sprintf("DE-AD-BE-EF-00-%02X", rng.IntN(64))
	if rng.IntN(2) == 0 {
		q := url.Values{"clientMac": {mac}, "site": {"Default"}, "apMac": {"AA-BB-CC-00-00-01"}, "ssidName": {"Guest"}, "radioId": {"1"}}
		return step{method: http.MethodGet, path: "/api/portal/login/?" + q.Encode()}
	}
	return step{method: http.MethodGet, path: "/api/portal/status/?clientMac=" + url.QueryEscape(mac)}
}

func readStep(rng *rand.Rand) step {
	if rng.IntN(2) == 0 {
		return step{method: http.MethodGet, path: "/api/devices/"}
	}
	return step{method: http.MethodGet, path: "/api/clients/"}
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "mixed"
	}
	return p
}

func validProfile(p string) bool {
	switch p {
	case "mixed", "ingest", "portal", "read":
		return true
	}
	return false
}
