package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/domain"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPortalSessionNotFound = errors.New("session not found")

// A login page refresh rewrites the capture context and expiry but leaves the
// authentication state and controller token alone.
var portalSessionUpsertColumns = []string{
	"ap_mac", "gateway_mac", "ssid_name", "vlan_id", "radio_id", "site_name", "redirect_url", "expires_at",
}

type PortalSessionRepository interface {
	Upsert(ctx context.Context, s *domain.PortalSession) (bool, error)
	FindByClientMAC(ctx context.Context, clientMAC string) (*domain.PortalSession, error)
	MarkAuthenticated(ctx context.Context, clientMAC, token string) error
	MarkUnauthenticated(ctx context.Context, clientMAC string) error
	ExpireAuthenticated(ctx context.Context, now time.Time) (int64, error)
}

type GormPortalSessionRepository struct{ db *gorm.DB }

func NewPortalSessionRepository(db *gorm.DB) PortalSessionRepository {
	return &GormPortalSessionRepository{db: db}
}

func (r *GormPortalSessionRepository) Upsert(ctx context.Context, s *domain.PortalSession) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.PortalSession{}).Where("client_mac = ?", s.ClientMAC).Count(&existing).Error; err != nil {
			return err
		}
		created = existing == 0
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_mac"}},
			DoUpdates: clause.AssignmentColumns(portalSessionUpsertColumns),
		}).Create(s).Error; err != nil {
			return err
		}
		var stored domain.PortalSession
		if err := tx.Where("client_mac = ?", s.ClientMAC).First(&stored).Error; err != nil {
			return err
		}
		*s = stored
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "portal_session", "upsert", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "portal_session", "upsert", "success")
	return created, nil
}

func (r *GormPortalSessionRepository) FindByClientMAC(ctx context.Context, clientMAC string) (*domain.PortalSession, error) {
	var s domain.PortalSession
	err := r.db.WithContext(ctx).Where("client_mac = ?", clientMAC).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "portal_session", "find_by_client_mac", "not_found")
			return nil, ErrPortalSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "portal_session", "find_by_client_mac", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "portal_session", "find_by_client_mac", "success")
	return &s, nil
}

func (r *GormPortalSessionRepository) MarkAuthenticated(ctx context.Context, clientMAC, token string) error {
	return r.update(ctx, "mark_authenticated", clientMAC, map[string]any{
		"token":            token,
		"is_authenticated": true,
	})
}

func (r *GormPortalSessionRepository) MarkUnauthenticated(ctx context.Context, clientMAC string) error {
	return r.update(ctx, "mark_unauthenticated", clientMAC, map[string]any{"is_authenticated": false})
}

// ExpireAuthenticated flips authenticated sessions whose expires_at has passed back to pending.
func (r *GormPortalSessionRepository) ExpireAuthenticated(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.PortalSession{}).
		Where("is_authenticated = ? AND expires_at <= ?", true, now).
		Update("is_authenticated", false)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "portal_session", "expire_authenticated", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "portal_session", "expire_authenticated", "success")
	return res.RowsAffected, nil
}

func (r *GormPortalSessionRepository) update(ctx context.Context, op, clientMAC string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.PortalSession{}).
		Where("client_mac = ?", clientMAC).
		Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "portal_session", op, "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "portal_session", op, "not_found")
		return ErrPortalSessionNotFound
	}
	observability.RecordRepositoryOperation(ctx, "portal_session", op, "success")
	return nil
}
