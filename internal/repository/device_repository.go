package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/omada-captive-portal/internal/domain"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDeviceNotFound = errors.New("device not found")

// Columns overwritten when an inventory push hits an existing device_id.
var deviceUpsertColumns = []string{
	"name", "mac_address", "ip_address", "model", "firmware_version", "status", "last_seen", "updated_at",
}

type DeviceRepository interface {
	Upsert(ctx context.Context, d *domain.Device) (bool, error)
	FindByDeviceID(ctx context.Context, deviceID string) (*domain.Device, error)
	List(ctx context.Context) ([]domain.Device, error)
}

type GormDeviceRepository struct{ db *gorm.DB }

func NewDeviceRepository(db *gorm.DB) DeviceRepository { return &GormDeviceRepository{db: db} }

// Upsert inserts or updates d keyed on device_id and reports whether a row was created.
// The insert itself is an ON CONFLICT upsert so concurrent pushes never duplicate a device.
func (r *GormDeviceRepository) Upsert(ctx context.Context, d *domain.Device) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.Device{}).Where("device_id = ?", d.DeviceID).Count(&existing).Error; err != nil {
			return err
		}
		created = existing == 0
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns(deviceUpsertColumns),
		}).Create(d).Error; err != nil {
			return err
		}
		var stored domain.Device
		if err := tx.Where("device_id = ?", d.DeviceID).First(&stored).Error; err != nil {
			return err
		}
		*d = stored
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "device", "upsert", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "device", "upsert", "success")
	return created, nil
}

func (r *GormDeviceRepository) FindByDeviceID(ctx context.Context, deviceID string) (*domain.Device, error) {
	var d domain.Device
	err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "device", "find_by_device_id", "not_found")
			return nil, ErrDeviceNotFound
		}
		observability.RecordRepositoryOperation(ctx, "device", "find_by_device_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "device", "find_by_device_id", "success")
	return &d, nil
}

func (r *GormDeviceRepository) List(ctx context.Context) ([]domain.Device, error) {
	devices := []domain.Device{}
	err := r.db.WithContext(ctx).Order("last_seen DESC").Order("id DESC").Find(&devices).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "device", "list", "error")
		return devices, err
	}
	observability.RecordRepositoryOperation(ctx, "device", "list", "success")
	return devices, nil
}
