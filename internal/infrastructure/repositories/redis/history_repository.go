package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	historyPrefix       = "camx:history:"
	historyDevicePrefix = "camx:device:history:"
	historyIDCounterKey = "camx:history:next_id"
)

type RedisHistoryRepository struct {
	client *redis.Client
}

func NewRedisHistoryRepository(client *redis.Client) ports.HistoryRepository {
	return &RedisHistoryRepository{client: client}
}

func (r *RedisHistoryRepository) recordKey(id int) string {
	return fmt.Sprintf("%s%d", historyPrefix, id)
}

func (r *RedisHistoryRepository) deviceListKey(deviceID domain.DeviceID) string {
	return historyDevicePrefix + string(deviceID)
}

func (r *RedisHistoryRepository) Create(ctx context.Context, record *domain.ConnectionRecord) (*domain.ConnectionRecord, error) {
	id, err := r.client.Incr(ctx, historyIDCounterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate record id: %w", err)
	}

	stored := *record
	stored.ID = int(id)
	if stored.StartTime.IsZero() {
		stored.StartTime = time.Now()
	}

	if err := r.set(ctx, &stored); err != nil {
		return nil, err
	}
	// Newest first
	if err := r.client.LPush(ctx, r.deviceListKey(stored.DeviceID), stored.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to index record by device: %w", err)
	}

	return &stored, nil
}

func (r *RedisHistoryRepository) CloseRecord(ctx context.Context, id int, successful bool, errorMessage string) (*domain.ConnectionRecord, error) {
	record, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record.EndTime = &now
	record.Successful = &successful
	record.ErrorMessage = errorMessage

	if err := r.set(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *RedisHistoryRepository) ListByDevice(ctx context.Context, deviceID domain.DeviceID, limit int) ([]*domain.ConnectionRecord, error) {
	end := int64(-1)
	if limit > 0 {
		end = int64(limit) - 1
	}

	ids, err := r.client.LRange(ctx, r.deviceListKey(deviceID), 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read device history: %w", err)
	}

	records := make([]*domain.ConnectionRecord, 0, len(ids))
	for _, idStr := range ids {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}
		record, err := r.get(ctx, id)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *RedisHistoryRepository) get(ctx context.Context, id int) (*domain.ConnectionRecord, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record from Redis: %w", err)
	}

	var record domain.ConnectionRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}

func (r *RedisHistoryRepository) set(ctx context.Context, record *domain.ConnectionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := r.client.Set(ctx, r.recordKey(record.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set record in Redis: %w", err)
	}
	return nil
}
