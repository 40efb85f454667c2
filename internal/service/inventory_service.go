package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/sandeepkv93/omada-captive-portal/internal/domain"
	"github.com/sandeepkv93/omada-captive-portal/internal/observability"
	"github.com/sandeepkv93/omada-captive-portal/internal/repository"
)

// DeviceDescriptor is the device push sent by the controller.
type DeviceDescriptor struct {
	DeviceID        string  `json:"device_id"`
	Name            string  `json:"name"`
	MACAddress      string  `json:"mac_address"`
	IPAddress       *string `json:"ip_address"`
	Model           string  `json:"model"`
	FirmwareVersion string  `json:"firmware_version"`
	Status          string  `json:"status"`
}

func (d DeviceDescriptor) Validate() error {
	missing := missingFields(
		"device_id", d.DeviceID,
		"name", d.Name,
		"mac_address", d.MACAddress,
		"model", d.Model,
		"firmware_version", d.FirmwareVersion,
		"status", d.Status,
	)
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return validateIP(d.IPAddress)
}

// ClientDescriptor is the client push sent by the controller. DeviceID names the owning
// device by its controller key.
type ClientDescriptor struct {
	ClientID   string  `json:"client_id"`
	MACAddress string  `json:"mac_address"`
	IPAddress  *string `json:"ip_address"`
	Hostname   *string `json:"hostname"`
	DeviceID   string  `json:"device_id"`
}

func (c ClientDescriptor) Validate() error {
	missing := missingFields(
		"client_id", c.ClientID,
		"mac_address", c.MACAddress,
		"device_id", c.DeviceID,
	)
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return validateIP(c.IPAddress)
}

type InventoryService struct {
	devices repository.DeviceRepository
	clients repository.ClientRepository
	now     func() time.Time
}

func NewInventoryService(devices repository.DeviceRepository, clients repository.ClientRepository) *InventoryService {
	return &InventoryService{
		devices: devices,
		clients: clients,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UpdateDevice upserts by device_id and reports whether a new device was recorded.
func (s *InventoryService) UpdateDevice(ctx context.Context, in DeviceDescriptor) (bool, error) {
	if err := in.Validate(); err != nil {
		observability.RecordInventoryUpsert(ctx, "device", false, "invalid")
		return false, err
	}
	d := &domain.Device{
		DeviceID:        strings.TrimSpace(in.DeviceID),
		Name:            in.Name,
		MACAddress:      in.MACAddress,
		IPAddress:       normalizeOptional(in.IPAddress),
		Model:           in.Model,
		FirmwareVersion: in.FirmwareVersion,
		Status:          in.Status,
		LastSeen:        s.now(),
	}
	created, err := s.devices.Upsert(ctx, d)
	if err != nil {
		observability.RecordInventoryUpsert(ctx, "device", false, "error")
		return false, fmt.Errorf("upsert device: %w", err)
	}
	observability.RecordInventoryUpsert(ctx, "device", created, "success")
	return created, nil
}

// UpdateClient upserts by client_id. The owning device must already be known.
func (s *InventoryService) UpdateClient(ctx context.Context, in ClientDescriptor) (bool, error) {
	if err := in.Validate(); err != nil {
		observability.RecordInventoryUpsert(ctx, "client", false, "invalid")
		return false, err
	}
	device, err := s.devices.FindByDeviceID(ctx, strings.TrimSpace(in.DeviceID))
	if err != nil {
		status := "error"
		if errors.Is(err, repository.ErrDeviceNotFound) {
			status = "device_not_found"
		}
		observability.RecordInventoryUpsert(ctx, "client", false, status)
		return false, err
	}
	now := s.now()
	c := &domain.Client{
		ClientID:       strings.TrimSpace(in.ClientID),
		MACAddress:     in.MACAddress,
		IPAddress:      normalizeOptional(in.IPAddress),
		Hostname:       normalizeOptional(in.Hostname),
		DeviceRefID:    device.ID,
		ConnectedSince: now,
		LastSeen:       now,
	}
	created, err := s.clients.Upsert(ctx, c)
	if err != nil {
		observability.RecordInventoryUpsert(ctx, "client", false, "error")
		return false, fmt.Errorf("upsert client: %w", err)
	}
	observability.RecordInventoryUpsert(ctx, "client", created, "success")
	return created, nil
}

func (s *InventoryService) ListDevices(ctx context.Context) ([]domain.Device, error) {
	return s.devices.List(ctx)
}

func (s *InventoryService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.clients.List(ctx)
}

// missingFields takes name/value pairs and returns the names whose value is blank.
func missingFields(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}

func validateIP(ip *string) error {
	v := normalizeOptional(ip)
	if v == nil {
		return nil
	}
	if _, err := netip.ParseAddr(*v); err != nil {
		return fmt.Errorf("%w: invalid ip_address %q", ErrValidation, *v)
	}
	return nil
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
