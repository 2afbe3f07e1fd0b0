package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"jttracker/internal/core/model"
)

// inMemoryDeviceRepository stores copies so callers never share a device
// value with the repository.
type inMemoryDeviceRepository struct {
	devices map[string]model.Device
	mutex   sync.RWMutex
}

func NewInMemoryDeviceRepository() DeviceRepository {
	return &inMemoryDeviceRepository{
		devices: make(map[string]model.Device),
	}
}

func (r *inMemoryDeviceRepository) Create(_ context.Context, device *model.Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.devices[device.ID]; exists {
		return errors.Wrapf(ErrDuplicateDevice, "id %s", device.ID)
	}
	for _, d := range r.devices {
		if d.UniqueID == device.UniqueID {
			return errors.Wrapf(ErrDuplicateDevice, "unique id %s", device.UniqueID)
		}
	}

	r.devices[device.ID] = *device
	return nil
}

func (r *inMemoryDeviceRepository) Update(_ context.Context, device *model.Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.devices[device.ID]; !exists {
		return errors.Errorf("device with ID %s not found", device.ID)
	}

	r.devices[device.ID] = *device
	return nil
}

func (r *inMemoryDeviceRepository) Delete(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.devices[id]; !exists {
		return errors.Errorf("device with ID %s not found", id)
	}

	delete(r.devices, id)
	return nil
}

func (r *inMemoryDeviceRepository) FindByID(_ context.Context, id string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if device, exists := r.devices[id]; exists {
		return &device, nil
	}
	return nil, nil
}

func (r *inMemoryDeviceRepository) FindByUniqueID(_ context.Context, uniqueID string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, device := range r.devices {
		if device.UniqueID == uniqueID {
			return &device, nil
		}
	}
	return nil, nil
}

func (r *inMemoryDeviceRepository) FindAll(_ context.Context) ([]*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	devices := make([]*model.Device, 0, len(r.devices))
	for _, device := range r.devices {
		device := device
		devices = append(devices, &device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].CreatedAt.Before(devices[j].CreatedAt) })
	return devices, nil
}
