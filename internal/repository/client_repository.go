package repository

import (
	"context"

	"github.com/sandeepkv93/omada-captive-portal/internal/domain"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// connected_since is kept from the first sighting.
var clientUpsertColumns = []string{
	"mac_address", "ip_address", "hostname", "device_ref_id", "last_seen", "updated_at",
}

type ClientRepository interface {
	Upsert(ctx context.Context, c *domain.Client) (bool, error)
	List(ctx context.Context) ([]domain.Client, error)
}

type GormClientRepository struct{ db *gorm.DB }

func NewClientRepository(db *gorm.DB) ClientRepository { return &GormClientRepository{db: db} }

func (r *GormClientRepository) Upsert(ctx context.Context, c *domain.Client) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.Client{}).Where("client_id = ?", c.ClientID).Count(&existing).Error; err != nil {
			return err
		}
		created = existing == 0
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			DoUpdates: clause.AssignmentColumns(clientUpsertColumns),
		}).Create(c).Error; err != nil {
			return err
		}
		var stored domain.Client
		if err := tx.Where("client_id = ?", c.ClientID).First(&stored).Error; err != nil {
			return err
		}
		*c = stored
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "client", "upsert", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "client", "upsert", "success")
	return created, nil
}

func (r *GormClientRepository) List(ctx context.Context) ([]domain.Client, error) {
	clients := []domain.Client{}
	err := r.db.WithContext(ctx).Order("last_seen DESC").Order("id DESC").Find(&clients).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "client", "list", "error")
		return clients, err
	}
	observability.RecordRepositoryOperation(ctx, "client", "list", "success")
	return clients, nil
}
