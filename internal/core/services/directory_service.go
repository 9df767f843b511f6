package services

import (
	"context"
	"fmt"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"
	"camx/pkg/utils"
	"camx/pkg/validation"

	"go.uber.org/zap"
)

type directoryService struct {
	devices ports.DeviceRepository
	logger  *zap.SugaredLogger
}

func NewDirectoryService(devices ports.DeviceRepository, logger *zap.SugaredLogger) ports.DirectoryService {
	return &directoryService{
		devices: devices,
		logger:  logger,
	}
}

func (s *directoryService) RegisterAnnouncement(ctx context.Context, announce domain.DiscoveryDevice) (*domain.Device, error) {
	if err := validation.ValidateDeviceID(announce.ID); err != nil {
		return nil, fmt.Errorf("rejecting announce: %w", err)
	}
	if err := validation.ValidateIPAddress(announce.IPAddress); err != nil {
		return nil, fmt.Errorf("rejecting announce from %s: %w", announce.ID, err)
	}
	if announce.Port != "" {
		if err := validation.ValidatePort(announce.Port); err != nil {
			return nil, fmt.Errorf("rejecting announce from %s: %w", announce.ID, err)
		}
	}
	announce.Name = validation.SanitizeString(announce.Name)
	// Nameless announces stay allowed, only present names are validated
	if announce.Name != "" {
		if err := validation.ValidateDeviceName(announce.Name); err != nil {
			return nil, fmt.Errorf("rejecting announce from %s: %w", announce.ID, err)
		}
	}

	device, err := s.devices.Upsert(ctx, announce)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device %s: %w", announce.ID, err)
	}

	s.logger.Infow("device registered",
		"device_id", device.DeviceID,
		"name", device.Name,
		"address", device.IPAddress,
		"port", device.Port,
	)
	return device, nil
}

func (s *directoryService) Snapshot(ctx context.Context) (domain.NetworkScanResult, error) {
	devices, err := s.devices.ListActive(ctx)
	if err != nil {
		return domain.NetworkScanResult{}, fmt.Errorf("failed to list active devices: %w", err)
	}

	if devices == nil {
		devices = []*domain.Device{}
	}

	return domain.NetworkScanResult{
		Devices:   devices,
		Timestamp: utils.FormatTimestamp(time.Now()),
	}, nil
}

func (s *directoryService) GetDevice(ctx context.Context, deviceID domain.DeviceID) (*domain.Device, error) {
	return s.devices.GetByDeviceID(ctx, deviceID)
}

func (s *directoryService) MarkInactive(ctx context.Context, id int) (*domain.Device, error) {
	return s.devices.SetActive(ctx, id, false)
}

func (s *directoryService) SweepStale(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	devices, err := s.devices.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list devices: %w", err)
	}

	swept := 0
	for _, device := range devices {
		if !device.IsActive || !utils.IsExpired(device.LastSeen, ttl) {
			continue
		}
		if _, err := s.devices.SetActive(ctx, device.ID, false); err != nil {
			s.logger.Warnw("failed to demote stale device", "device_id", device.DeviceID, "error", err)
			continue
		}
		swept++
		s.logger.Infow("device marked inactive after ttl",
			"device_id", device.DeviceID,
			"last_seen", device.LastSeen,
		)
	}

	return swept, nil
}
