package memory

import (
	"context"
	"sync"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"
)

type MemoryDeviceRepository struct {
	devices map[domain.DeviceID]*domain.Device
	byID    map[int]domain.DeviceID
	// order keeps first-discovery order for ListActive/ListAll
	order  []domain.DeviceID
	nextID int
	mu     sync.RWMutex
}

func NewMemoryDeviceRepository() ports.DeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[domain.DeviceID]*domain.Device),
		byID:    make(map[int]domain.DeviceID),
		nextID:  1,
	}
}

func (r *MemoryDeviceRepository) Upsert(ctx context.Context, announce domain.DiscoveryDevice) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	deviceID := domain.DeviceID(announce.ID)

	if device, exists := r.devices[deviceID]; exists {
		device.IPAddress = announce.IPAddress
		device.Port = announce.Port
		device.IsActive = true
		if now.After(device.LastSeen) {
			device.LastSeen = now
		}
		return cloneDevice(device), nil
	}

	device := &domain.Device{
		ID:        r.nextID,
		DeviceID:  deviceID,
		Name:      announce.Name,
		Model:     orUnknown(announce.Model),
		Platform:  orUnknown(announce.Platform),
		IPAddress: announce.IPAddress,
		Port:      announce.Port,
		IsActive:  true,
		LastSeen:  now,
	}
	r.nextID++

	r.devices[deviceID] = device
	r.byID[device.ID] = deviceID
	r.order = append(r.order, deviceID)

	return cloneDevice(device), nil
}

func (r *MemoryDeviceRepository) SetActive(ctx context.Context, id int, active bool) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deviceID, exists := r.byID[id]
	if !exists {
		return nil, domain.ErrDeviceNotFound
	}

	device := r.devices[deviceID]
	device.IsActive = active
	now := time.Now()
	if now.After(device.LastSeen) {
		device.LastSeen = now
	}

	return cloneDevice(device), nil
}

func (r *MemoryDeviceRepository) GetByDeviceID(ctx context.Context, deviceID domain.DeviceID) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, exists := r.devices[deviceID]
	if !exists {
		return nil, domain.ErrDeviceNotFound
	}

	return cloneDevice(device), nil
}

func (r *MemoryDeviceRepository) ListActive(ctx context.Context) ([]*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.Device
	for _, deviceID := range r.order {
		if device := r.devices[deviceID]; device.IsActive {
			active = append(active, cloneDevice(device))
		}
	}

	return active, nil
}

func (r *MemoryDeviceRepository) ListAll(ctx context.Context) ([]*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Device, 0, len(r.order))
	for _, deviceID := range r.order {
		all = append(all, cloneDevice(r.devices[deviceID]))
	}

	return all, nil
}

// cloneDevice keeps callers from mutating the stored record outside the lock.
func cloneDevice(device *domain.Device) *domain.Device {
	clone := *device
	return &clone
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
