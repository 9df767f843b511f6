package ports

import (
	"context"

	"camx/internal/core/domain"
)

type DeviceRepository interface {
	// Upsert registers a device on first announce and refreshes
	// address/port/lastSeen/isActive on every later one. Exactly one Device
	// per DeviceID regardless of concurrent announce bursts.
	Upsert(ctx context.Context, announce domain.DiscoveryDevice) (*domain.Device, error)
	SetActive(ctx context.Context, id int, active bool) (*domain.Device, error)
	GetByDeviceID(ctx context.Context, deviceID domain.DeviceID) (*domain.Device, error)
	// ListActive returns active devices in first-discovery order.
	ListActive(ctx context.Context) ([]*domain.Device, error)
	ListAll(ctx context.Context) ([]*domain.Device, error)
}

type HistoryRepository interface {
	Create(ctx context.Context, record *domain.ConnectionRecord) (*domain.ConnectionRecord, error)
	CloseRecord(ctx context.Context, id int, successful bool, errorMessage string) (*domain.ConnectionRecord, error)
	ListByDevice(ctx context.Context, deviceID domain.DeviceID, limit int) ([]*domain.ConnectionRecord, error)
}
