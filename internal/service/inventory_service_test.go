package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandeepkv93/omada-captive-portal/internal/repository"
)

func newInventory(t *testing.T) (*InventoryService, repository.DeviceRepository) {
	t.Helper()
	db := newTestDB(t)
	devices := repository.NewDeviceRepository(db)
	return NewInventoryService(devices, repository.NewClientRepository(db)), devices
}

func validDevice(id string) DeviceDescriptor {
	return DeviceDescriptor{
		DeviceID:        id,
		Name:            "Lobby AP",
		MACAddress:      "AA-BB-CC-00-00-01",
		IPAddress:       strPtr("10.0.0.2"),
		Model:           "EAP245",
		FirmwareVersion: "5.1.0",
		Status:          "connected",
	}
}

func TestUpdateDeviceTwiceKeepsOneRecordWithLatestValues(t *testing.T) {
	ctx := context.Background()
	svc, devices := newInventory(t)

	created, err := svc.UpdateDevice(ctx, validDevice("dev-1"))
	if err != nil || !created {
		t.Fatalf("first update: created=%v err=%v", created, err)
	}
	second := validDevice("dev-1")
	second.Name = "Renamed AP"
	second.Status = "disconnected"
	second.IPAddress = nil
	created, err = svc.UpdateDevice(ctx, second)
	if err != nil || created {
		t.Fatalf("second update: created=%v err=%v", created, err)
	}

	list, err := svc.ListDevices(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one device, got %d", len(list))
	}
	got, err := devices.FindByDeviceID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Renamed AP" || got.Status != "disconnected" || got.IPAddress != nil {
		t.Fatalf("device not overwritten: %+v", got)
	}
}

func TestUpdateDeviceValidation(t *testing.T) {
	svc, _ := newInventory(t)
	cases := []struct {
		name    string
		mutate  func(*DeviceDescriptor)
		wantMsg string
	}{
		{name: "missing id", mutate: func(d *DeviceDescriptor) { d.DeviceID = "" }, wantMsg: "device_id"},
		{name: "blank status", mutate: func(d *DeviceDescriptor) { d.Status = "  " }, wantMsg: "status"},
		{name: "several missing", mutate: func(d *DeviceDescriptor) { d.Model, d.FirmwareVersion = "", "" }, wantMsg: "model, firmware_version"},
		{name: "bad ip", mutate: func(d *DeviceDescriptor) { d.IPAddress = strPtr("10.0.0.300") }, wantMsg: "invalid ip_address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDevice("dev-v")
			tc.mutate(&d)
			_, err := svc.UpdateDevice(context.Background(), d)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected %q in %q", tc.wantMsg, err.Error())
			}
		})
	}
}

func TestUpdateClientRequiresExistingDevice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newInventory(t)

	_, err := svc.UpdateClient(ctx, ClientDescriptor{ClientID: "c-1", MACAddress: "11-22-33-44-55-66", DeviceID: "ghost"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected device not found, got %v", err)
	}
	clients, err := svc.ListClients(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clients) != 0 {
		t.Fatalf("expected no clients, got %d", len(clients))
	}
}

func TestUpdateClientUpsertsAgainstDevice(t *testing.T) {
	ctx := context.Background()
	svc, devices := newInventory(t)
	if _, err := svc.UpdateDevice(ctx, validDevice("dev-c")); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	in := ClientDescriptor{ClientID: "c-1", MACAddress: "11-22-33-44-55-66", Hostname: strPtr("phone"), DeviceID: "dev-c"}

	created, err := svc.UpdateClient(ctx, in)
	if err != nil || !created {
		t.Fatalf("first update: created=%v err=%v", created, err)
	}
	in.Hostname = strPtr("")
	created, err = svc.UpdateClient(ctx, in)
	if err != nil || created {
		t.Fatalf("second update: created=%v err=%v", created, err)
	}

	device, _ := devices.FindByDeviceID(ctx, "dev-c")
	clients, err := svc.ListClients(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected one client, got %d", len(clients))
	}
	got := clients[0]
	if got.DeviceRefID != device.ID || got.Hostname != nil {
		t.Fatalf("unexpected client: %+v", got)
	}
}

func TestUpdateClientValidation(t *testing.T) {
	svc, _ := newInventory(t)
	_, err := svc.UpdateClient(context.Background(), ClientDescriptor{ClientID: "c-1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "mac_address, device_id") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
