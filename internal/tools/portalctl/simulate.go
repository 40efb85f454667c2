package portalctl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type simulateOptions struct {
	clientMAC  string
	site       string
	apMAC      string
	ssidName   string
	radioID    string
	gatewayMAC string
	vid        string
	username   string
	password   string
	keep       bool
}

// simulatePortal walks a guest through login page, authentication, status and logout.
func simulatePortal(ctx context.Context, c *apiClient, opts simulateOptions) ([]string, error) {
	if strings.TrimSpace(opts.clientMAC) == "" || strings.TrimSpace(opts.site) == "" {
		return nil, fmt.Errorf("client mac and site are required")
	}
	q := url.Values{"clientMac": {opts.clientMAC}, "site": {opts.site}}
	for k, v := range map[string]string{
		"apMac":      opts.apMAC,
		"ssidName":   opts.ssidName,
		"radioId":    opts.radioID,
		"gatewayMac": opts.gatewayMAC,
		"vid":        opts.vid,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var details []string

	status, page, err := c.getPage(ctx, "/api/portal/login/?"+q.Encode())
	if err != nil {
		return details, fmt.Errorf("login page: %w", err)
	}
	if status != http.StatusOK || !strings.Contains(page, "<form") {
		return details, fmt.Errorf("login page: status %d", status)
	}
	details = append(details, "login page: ok")

	status, env, err := c.postForm(ctx, "/api/portal/auth/?"+q.Encode(), url.Values{
		"username":  {opts.username},
		"password":  {opts.password},
		"clientMac": {opts.clientMAC},
	})
	if err != nil {
		return details, fmt.Errorf("authenticate: %w", err)
	}
	if status != http.StatusOK {
		return details, fmt.Errorf("authenticate: status %d: %s", status, env.message())
	}
	details = append(details, "authenticate: "+env.message())

	status, env, err = c.getJSON(ctx, "/api/portal/status/?clientMac="+url.QueryEscape(opts.clientMAC))
	if err != nil {
		return details, fmt.Errorf("status: %w", err)
	}
	if status != http.StatusOK {
		return details, fmt.Errorf("status: status %d: %s", status, env.message())
	}
	if authed, _ := env["is_authenticated"].(bool); !authed {
		return details, fmt.Errorf("status: session not authenticated after login")
	}
	details = append(details, fmt.Sprintf("status: authenticated until %v", env["expires_at"]))

	if opts.keep {
		return details, nil
	}
	status, env, err = c.postJSON(ctx, "/api/portal/logout/", map[string]string{"clientMac": opts.clientMAC}, false)
	if err != nil {
		return details, fmt.Errorf("logout: %w", err)
	}
	if status != http.StatusOK {
		return details, fmt.Errorf("logout: status %d: %s", status, env.message())
	}
	details = append(details, "logout: ok")
	return details, nil
}
