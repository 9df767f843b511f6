package services

import (
	"context"
	"fmt"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"

	"go.uber.org/zap"
)

const defaultHistoryLimit = 10

type historyService struct {
	history ports.HistoryRepository
	logger  *zap.SugaredLogger
}

func NewHistoryService(history ports.HistoryRepository, logger *zap.SugaredLogger) ports.HistoryService {
	return &historyService{
		history: history,
		logger:  logger,
	}
}

func (s *historyService) RecordStart(ctx context.Context, deviceID domain.DeviceID, clientID domain.ClientID) (*domain.ConnectionRecord, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	record, err := s.history.Create(ctx, &domain.ConnectionRecord{
		DeviceID:  deviceID,
		ClientID:  clientID,
		StartTime: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record connection start: %w", err)
	}

	s.logger.Debugw("connection attempt recorded",
		"record_id", record.ID,
		"device_id", deviceID,
		"client_id", clientID,
	)
	return record, nil
}

func (s *historyService) RecordEnd(ctx context.Context, id int, successful bool, errorMessage string) (*domain.ConnectionRecord, error) {
	record, err := s.history.CloseRecord(ctx, id, successful, errorMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to record connection end: %w", err)
	}
	return record, nil
}

func (s *historyService) ForDevice(ctx context.Context, deviceID domain.DeviceID, limit int) ([]*domain.ConnectionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.history.ListByDevice(ctx, deviceID, limit)
}
