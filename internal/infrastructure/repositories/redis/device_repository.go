package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	devicePrefix       = "camx:device:"
	deviceByIDPrefix   = "camx:device:id:"
	deviceOrderKey     = "camx:devices:order"
	deviceIDCounterKey = "camx:devices:next_id"
)

// RedisDeviceRepository persists the directory across restarts. The server
// is the only writer, so per-deviceId serialization is a process-local lock
// rather than a distributed one.
type RedisDeviceRepository struct {
	client *redis.Client
	mu     sync.Mutex
}

func NewRedisDeviceRepository(client *redis.Client) ports.DeviceRepository {
	return &RedisDeviceRepository{client: client}
}

func (r *RedisDeviceRepository) deviceKey(deviceID domain.DeviceID) string {
	return devicePrefix + string(deviceID)
}

func (r *RedisDeviceRepository) idKey(id int) string {
	return fmt.Sprintf("%s%d", deviceByIDPrefix, id)
}

func (r *RedisDeviceRepository) Upsert(ctx context.Context, announce domain.DiscoveryDevice) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deviceID := domain.DeviceID(announce.ID)
	now := time.Now()

	device, err := r.getLocked(ctx, deviceID)
	switch {
	case err == domain.ErrDeviceNotFound:
		id, err := r.client.Incr(ctx, deviceIDCounterKey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate device id: %w", err)
		}

		device = &domain.Device{
			ID:        int(id),
			DeviceID:  deviceID,
			Name:      announce.Name,
			Model:     orUnknown(announce.Model),
			Platform:  orUnknown(announce.Platform),
			IPAddress: announce.IPAddress,
			Port:      announce.Port,
			IsActive:  true,
			LastSeen:  now,
		}

		if err := r.client.RPush(ctx, deviceOrderKey, string(deviceID)).Err(); err != nil {
			return nil, fmt.Errorf("failed to append device order: %w", err)
		}
		if err := r.client.Set(ctx, r.idKey(device.ID), string(deviceID), 0).Err(); err != nil {
			return nil, fmt.Errorf("failed to index device id: %w", err)
		}

	case err != nil:
		return nil, err

	default:
		device.IPAddress = announce.IPAddress
		device.Port = announce.Port
		device.IsActive = true
		if now.After(device.LastSeen) {
			device.LastSeen = now
		}
	}

	if err := r.setLocked(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (r *RedisDeviceRepository) SetActive(ctx context.Context, id int, active bool) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deviceIDStr, err := r.client.Get(ctx, r.idKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve device id %d: %w", id, err)
	}

	device, err := r.getLocked(ctx, domain.DeviceID(deviceIDStr))
	if err != nil {
		return nil, err
	}

	device.IsActive = active
	now := time.Now()
	if now.After(device.LastSeen) {
		device.LastSeen = now
	}

	if err := r.setLocked(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (r *RedisDeviceRepository) GetByDeviceID(ctx context.Context, deviceID domain.DeviceID) (*domain.Device, error) {
	return r.getLocked(ctx, deviceID)
}

func (r *RedisDeviceRepository) ListActive(ctx context.Context) ([]*domain.Device, error) {
	devices, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var active []*domain.Device
	for _, device := range devices {
		if device.IsActive {
			active = append(active, device)
		}
	}
	return active, nil
}

func (r *RedisDeviceRepository) ListAll(ctx context.Context) ([]*domain.Device, error) {
	deviceIDs, err := r.client.LRange(ctx, deviceOrderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read device order: %w", err)
	}

	devices := make([]*domain.Device, 0, len(deviceIDs))
	for _, idStr := range deviceIDs {
		device, err := r.getLocked(ctx, domain.DeviceID(idStr))
		if err != nil {
			// Skip records that vanished between LRANGE and GET
			continue
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func (r *RedisDeviceRepository) getLocked(ctx context.Context, deviceID domain.DeviceID) (*domain.Device, error) {
	data, err := r.client.Get(ctx, r.deviceKey(deviceID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device from Redis: %w", err)
	}

	var device domain.Device
	if err := json.Unmarshal([]byte(data), &device); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device: %w", err)
	}
	return &device, nil
}

func (r *RedisDeviceRepository) setLocked(ctx context.Context, device *domain.Device) error {
	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %w", err)
	}
	if err := r.client.Set(ctx, r.deviceKey(device.DeviceID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set device in Redis: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
