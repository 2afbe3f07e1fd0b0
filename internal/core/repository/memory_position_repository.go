package repository

import (
	"context"
	"sort"
	"sync"

	"jttracker/internal/core/model"
)

type inMemoryPositionRepository struct {
	positions map[string]*model.Position
	mutex     sync.RWMutex
}

func NewInMemoryPositionRepository() PositionRepository {
	return &inMemoryPositionRepository{
		positions: make(map[string]*model.Position),
	}
}

func (r *inMemoryPositionRepository) Create(_ context.Context, position *model.Position) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.positions[position.ID] = position
	return nil
}

func (r *inMemoryPositionRepository) FindByDeviceID(_ context.Context, deviceID string) ([]*model.Position, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.Position
	for _, position := range r.positions {
		if position.DeviceID == deviceID {
			result = append(result, position)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

func (r *inMemoryPositionRepository) FindLatestByDeviceID(_ context.Context, deviceID string) (*model.Position, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *model.Position
	for _, position := range r.positions {
		if position.DeviceID == deviceID {
			if latest == nil || position.Timestamp.After(latest.Timestamp) {
				latest = position
			}
		}
	}
	return latest, nil
}
