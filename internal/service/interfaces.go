package service

import (
	"context"

	"github.com/sandeepkv93/omada-captive-portal/internal/domain"
)

type InventoryServiceInterface interface {
	UpdateDevice(ctx context.Context, in DeviceDescriptor) (bool, error)
	UpdateClient(ctx context.Context, in ClientDescriptor) (bool, error)
	ListDevices(ctx context.Context) ([]domain.Device, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
}

type PortalServiceInterface interface {
	BeginSession(ctx context.Context, p CaptureParams) (*domain.PortalSession, error)
	Authenticate(ctx context.Context, c Credentials) error
	Status(ctx context.Context, clientMAC string) (*SessionStatus, error)
	Logout(ctx context.Context, clientMAC string) error
}
