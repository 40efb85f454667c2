package portalctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/sandeepkv93/omada-captive-portal/internal/service"

	"golang.org/x/sync/errgroup"
)

// readRecords accepts a single JSON object or an array of them.
func readRecords[T any](path string) ([]T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	if b[0] == '[' {
		var out []T
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return out, nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []T{one}, nil
}

func pushDevices(ctx context.Context, c *apiClient, devices []service.DeviceDescriptor, concurrency int) ([]string, error) {
	return pushAll(ctx, c, "/api/devices/update/", devices, concurrency, func(d service.DeviceDescriptor) string { return "device " + d.DeviceID })
}

func pushClients(ctx context.Context, c *apiClient, clients []service.ClientDescriptor, concurrency int) ([]string, error) {
	return pushAll(ctx, c, "/api/clients/update/", clients, concurrency, func(cl service.ClientDescriptor) string { return "client " + cl.ClientID })
}

// pushAll posts every record and stops at the first rejected push.
func pushAll[T any](ctx context.Context, c *apiClient, path string, records []T, concurrency int, label func(T) string) ([]string, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	details := make([]string, len(records))
	var mu sync.Mutex
	created := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range records {
		g.Go(func() error {
			status, env, err := c.postJSON(gctx, path, rec, true)
			if err != nil {
				return fmt.Errorf("%s: %w", label(rec), err)
			}
			if status != http.StatusOK {
				return fmt.Errorf("%s: status %d: %s", label(rec), status, env.message())
			}
			isNew, _ := env["created"].(bool)
			verb := "updated"
			if isNew {
				verb = "created"
				mu.Lock()
				created++
				mu.Unlock()
			}
			details[i] = label(rec) + ": " + verb
			return nil
		})
	}
	err := g.Wait()
	out := make([]string, 0, len(details)+1)
	for _, d := range details {
		if d != "" {
			out = append(out, d)
		}
	}
	out = append(out, fmt.Sprintf("pushed=%d created=%d", len(out), created))
	return out, err
}
