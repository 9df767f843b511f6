package memory

import (
	"context"
	"sync"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"
)

type MemoryHistoryRepository struct {
	records map[int]*domain.ConnectionRecord
	// perDevice holds record ids newest first
	perDevice map[domain.DeviceID][]int
	nextID    int
	mu        sync.RWMutex
}

func NewMemoryHistoryRepository() ports.HistoryRepository {
	return &MemoryHistoryRepository{
		records:   make(map[int]*domain.ConnectionRecord),
		perDevice: make(map[domain.DeviceID][]int),
		nextID:    1,
	}
}

func (r *MemoryHistoryRepository) Create(ctx context.Context, record *domain.ConnectionRecord) (*domain.ConnectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *record
	stored.ID = r.nextID
	r.nextID++
	if stored.StartTime.IsZero() {
		stored.StartTime = time.Now()
	}

	r.records[stored.ID] = &stored
	r.perDevice[stored.DeviceID] = append([]int{stored.ID}, r.perDevice[stored.DeviceID]...)

	clone := stored
	return &clone, nil
}

func (r *MemoryHistoryRepository) CloseRecord(ctx context.Context, id int, successful bool, errorMessage string) (*domain.ConnectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[id]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}

	now := time.Now()
	record.EndTime = &now
	record.Successful = &successful
	record.ErrorMessage = errorMessage

	clone := *record
	return &clone, nil
}

func (r *MemoryHistoryRepository) ListByDevice(ctx context.Context, deviceID domain.DeviceID, limit int) ([]*domain.ConnectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.perDevice[deviceID]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	records := make([]*domain.ConnectionRecord, 0, len(ids))
	for _, id := range ids {
		clone := *r.records[id]
		records = append(records, &clone)
	}

	return records, nil
}
