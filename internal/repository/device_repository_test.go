package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/domain"
)

func TestDeviceRepositoryUpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(newTestDB(t))

	first := &domain.Device{
		DeviceID:        "dev-1",
		Name:            "Lobby AP",
		MACAddress:      "AA-BB-CC-00-00-01",
		IPAddress:       strPtr("10.0.0.2"),
		Model:           "EAP245",
		FirmwareVersion: "5.0.1",
		Status:          "connected",
		LastSeen:        time.Now().UTC().Add(-time.Minute),
	}
	created, err := repo.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Fatal("expected created=true on first upsert")
	}
	firstCreatedAt := first.CreatedAt

	second := &domain.Device{
		DeviceID:        "dev-1",
		Name:            "Lobby AP (renamed)",
		MACAddress:      "AA-BB-CC-00-00-01",
		Model:           "EAP245",
		FirmwareVersion: "5.1.0",
		Status:          "disconnected",
		LastSeen:        time.Now().UTC(),
	}
	created, err = repo.Upsert(ctx, second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatal("expected created=false on second upsert")
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected one device, got %d", len(devices))
	}
	got := devices[0]
	if got.Name != "Lobby AP (renamed)" || got.FirmwareVersion != "5.1.0" || got.Status != "disconnected" {
		t.Fatalf("device not updated from second push: %+v", got)
	}
	if got.IPAddress != nil {
		t.Fatalf("expected ip_address cleared by second push, got %q", *got.IPAddress)
	}
	if !got.CreatedAt.Equal(firstCreatedAt) {
		t.Fatalf("created_at changed on update: %s -> %s", firstCreatedAt, got.CreatedAt)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert to reload stored row, id %d vs %d", second.ID, first.ID)
	}
}

func TestDeviceRepositoryFindAndListOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(newTestDB(t))

	now := time.Now().UTC()
	for i, id := range []string{"old", "new"} {
		_, err := repo.Upsert(ctx, &domain.Device{
			DeviceID:        id,
			Name:            id,
			MACAddress:      "AA-BB-CC-00-00-0" + string(rune('1'+i)),
			Model:           "ER605",
			FirmwareVersion: "1.0",
			Status:          "connected",
			LastSeen:        now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 2 || devices[0].DeviceID != "new" {
		t.Fatalf("expected newest last_seen first, got %+v", devices)
	}

	if _, err := repo.FindByDeviceID(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	d, err := repo.FindByDeviceID(ctx, "old")
	if err != nil {
		t.Fatalf("find old: %v", err)
	}
	if d.Name != "old" {
		t.Fatalf("unexpected device: %+v", d)
	}
}
