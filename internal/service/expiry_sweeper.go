package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/repository"

	"github.com/robfig/cron/v3"
)

// ExpirySweeper periodically flips authenticated sessions past expires_at back to pending.
type ExpirySweeper struct {
	sessions repository.PortalSessionRepository
	cron     *cron.Cron
	timeout  time.Duration
	now      func() time.Time
}

func NewExpirySweeper(sessions repository.PortalSessionRepository, schedule string) (*ExpirySweeper, error) {
	s := &ExpirySweeper{
		sessions: sessions,
		cron:     cron.New(),
		timeout:  30 * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("parse expiry sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *ExpirySweeper) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *ExpirySweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.sessions.ExpireAuthenticated(ctx, s.now())
	if err != nil {
		observability.RecordExpirySweep(ctx, 0, "error")
		return 0, err
	}
	observability.RecordExpirySweep(ctx, n, "success")
	return n, nil
}

func (s *ExpirySweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.Sweep(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "portal session expiry sweep failed", "error", err.Error())
		return
	}
	slog.InfoContext(ctx, "portal session expiry sweep finished", "expired", n)
}
