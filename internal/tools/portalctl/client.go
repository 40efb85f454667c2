package portalctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// apiClient talks to a running portal API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// envelope is the flat response body every JSON endpoint returns.
type envelope map[string]any

func (e envelope) message() string {
	m, _ := e["message"].(string)
	return m
}

func newAPIClient(baseURL, token string, timeout time.Duration) (*apiClient, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &apiClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *apiClient) postJSON(ctx context.Context, path string, in any, authed bool) (int, envelope, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.do(req)
}

func (c *apiClient) postForm(ctx context.Context, path string, form url.Values) (int, envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *apiClient) getJSON(ctx context.Context, path string) (int, envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	return c.do(req)
}

// getPage fetches an html page and returns its body.
func (c *apiClient) getPage(ctx context.Context, path string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(b), nil
}

func (c *apiClient) do(req *http.Request) (int, envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	var env envelope
	if len(b) > 0 {
		if err := json.Unmarshal(b, &env); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode, env, nil
}
