package service

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
	"jttracker/internal/core/repository"
	"jttracker/internal/protocol"
)

// DeviceCache remembers which device a frame identifier belongs to.
type DeviceCache interface {
	LookupDevice(ctx context.Context, uniqueID string) (string, bool)
	StoreDevice(ctx context.Context, uniqueID, deviceID string)
	ForgetDevice(ctx context.Context, uniqueID string)
}

// DeviceService owns the device registry. It is the resolver the decoders
// call with the identifier read from each frame.
type DeviceService interface {
	protocol.DeviceResolver
	// CreateDevice registers uniqueID in its normalized decimal form so it
	// matches what the decoders read off the wire.
	CreateDevice(ctx context.Context, name, uniqueID, protocolName string) (*model.Device, error)
	DeleteDevice(ctx context.Context, id string) error
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	GetAllDevices(ctx context.Context) ([]*model.Device, error)
	// Touch marks the device active with position as its latest fix.
	Touch(ctx context.Context, position *model.Position) error
}

type deviceService struct {
	deviceRepo repository.DeviceRepository
	cache      DeviceCache
	logger     *zap.Logger

	mu        sync.Mutex
	addresses map[string]string
}

func NewDeviceService(deviceRepo repository.DeviceRepository, cache DeviceCache, logger *zap.Logger) DeviceService {
	if cache == nil {
		cache = noCache{}
	}
	return &deviceService{
		deviceRepo: deviceRepo,
		cache:      cache,
		logger:     logger,
		addresses:  make(map[string]string),
	}
}

func (s *deviceService) CreateDevice(ctx context.Context, name, uniqueID, protocolName string) (*model.Device, error) {
	if name == "" || uniqueID == "" {
		return nil, errors.New("invalid device data")
	}
	normalized, err := protocol.NormalizeUniqueID(uniqueID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid device data")
	}

	device := model.NewDevice(name, normalized, protocolName)
	if err := s.deviceRepo.Create(ctx, device); err != nil {
		return nil, err
	}
	s.logger.Info("device registered",
		zap.String("deviceId", device.ID),
		zap.String("uniqueId", normalized),
		zap.String("protocol", protocolName))
	return device, nil
}

func (s *deviceService) DeleteDevice(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid device ID")
	}
	device, err := s.deviceRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if device == nil {
		return errors.Errorf("device with ID %s not found", id)
	}
	if err := s.deviceRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.ForgetDevice(ctx, device.UniqueID)
	return nil
}

func (s *deviceService) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	if id == "" {
		return nil, errors.New("invalid device ID")
	}
	return s.deviceRepo.FindByID(ctx, id)
}

func (s *deviceService) GetAllDevices(ctx context.Context) ([]*model.Device, error) {
	return s.deviceRepo.FindAll(ctx)
}

// Resolve checks the cache first and falls back to the repository. A
// repository error counts as not found; the frame is dropped either way.
func (s *deviceService) Resolve(ctx context.Context, remote net.Addr, uniqueID string) (string, bool) {
	deviceID, ok := s.cache.LookupDevice(ctx, uniqueID)
	if !ok {
		device, err := s.deviceRepo.FindByUniqueID(ctx, uniqueID)
		if err != nil {
			s.logger.Error("device lookup failed", zap.String("uniqueId", uniqueID), zap.Error(err))
			return "", false
		}
		if device == nil {
			return "", false
		}
		deviceID = device.ID
		s.cache.StoreDevice(ctx, uniqueID, deviceID)
	}

	if remote != nil {
		s.mu.Lock()
		s.addresses[deviceID] = remote.String()
		s.mu.Unlock()
	}
	return deviceID, true
}

func (s *deviceService) Touch(ctx context.Context, position *model.Position) error {
	device, err := s.deviceRepo.FindByID(ctx, position.DeviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return errors.Errorf("device with ID %s not found", position.DeviceID)
	}

	device.Touch(position)
	s.mu.Lock()
	if addr, ok := s.addresses[device.ID]; ok {
		device.LastAddress = addr
	}
	s.mu.Unlock()
	return s.deviceRepo.Update(ctx, device)
}

type noCache struct{}

func (noCache) LookupDevice(context.Context, string) (string, bool) { return "", false }
func (noCache) StoreDevice(context.Context, string, string)         {}
func (noCache) ForgetDevice(context.Context, string)                {}
