package service

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
	"jttracker/internal/core/repository"
	"jttracker/internal/observability"
	"jttracker/internal/protocol"
	"jttracker/internal/protocol/codec"
	"jttracker/internal/stream"
)

type PositionService interface {
	// ProcessFrame decodes one frame, stores the record and publishes it.
	// Frames that produce no record return a nil position and the reason.
	ProcessFrame(ctx context.Context, remote net.Addr, data []byte, replier protocol.Replier) (*model.Position, error)
	GetDevicePositions(ctx context.Context, deviceID string) ([]*model.Position, error)
	GetLatestPosition(ctx context.Context, deviceID string) (*model.Position, error)
}

type positionService struct {
	positionRepo repository.PositionRepository
	devices      DeviceService
	decoder      protocol.Decoder
	publisher    stream.Publisher
	logger       *zap.Logger
}

func NewPositionService(positionRepo repository.PositionRepository, devices DeviceService, decoder protocol.Decoder, publisher stream.Publisher, logger *zap.Logger) PositionService {
	if publisher == nil {
		publisher = stream.Discard{}
	}
	return &positionService{
		positionRepo: positionRepo,
		devices:      devices,
		decoder:      decoder,
		publisher:    publisher,
		logger:       logger,
	}
}

func (s *positionService) ProcessFrame(ctx context.Context, remote net.Addr, data []byte, replier protocol.Replier) (*model.Position, error) {
	observability.FramesReceived.Inc()
	start := time.Now()
	defer observability.ObserveDecodeLatency(start)

	if replier != nil {
		replier = countingReplier{replier}
	}

	position, err := s.decoder.Decode(ctx, remote, data, replier)
	if err != nil {
		s.drop(remote, data, err)
		return nil, err
	}

	if err := s.positionRepo.Create(ctx, position); err != nil {
		observability.FramesDropped.WithLabelValues(observability.ReasonStore).Inc()
		s.logger.Error("failed to store position",
			zap.String("deviceId", position.DeviceID),
			zap.Error(err))
		return nil, errors.Wrap(err, "store position")
	}
	observability.RecordsDecoded.WithLabelValues(position.Protocol).Inc()

	if err := s.publisher.Publish(position); err != nil {
		observability.PublishErrors.Inc()
		s.logger.Warn("failed to publish position", zap.String("positionId", position.ID), zap.Error(err))
	}
	if err := s.devices.Touch(ctx, position); err != nil {
		s.logger.Warn("failed to update device", zap.String("deviceId", position.DeviceID), zap.Error(err))
	}

	s.logger.Info("position stored",
		zap.String("protocol", position.Protocol),
		zap.String("deviceId", position.DeviceID),
		zap.Time("time", position.Timestamp),
		zap.Float64("lat", position.Latitude),
		zap.Float64("lon", position.Longitude),
		zap.String("alarm", position.Alarm()))
	return position, nil
}

// drop logs and counts a frame that produced no record, keeping the three
// decode outcomes apart.
func (s *positionService) drop(remote net.Addr, data []byte, err error) {
	fields := []zap.Field{zap.Int("length", len(data)), zap.Error(err)}
	if remote != nil {
		fields = append(fields, zap.String("remote", remote.String()))
	}

	var reason string
	switch {
	case errors.Is(err, protocol.ErrUnknownFrame):
		reason = observability.ReasonUnknownFrame
		s.logger.Debug("unrecognized frame", fields...)
	case errors.Is(err, protocol.ErrDeviceNotFound):
		reason = observability.ReasonUnknownDevice
		s.logger.Warn("frame from unknown device", fields...)
	case errors.Is(err, codec.ErrShortFrame):
		reason = observability.ReasonTruncated
		s.logger.Warn("truncated frame", fields...)
	default:
		reason = observability.ReasonDecode
		s.logger.Error("frame decode failed", fields...)
	}
	observability.FramesDropped.WithLabelValues(reason).Inc()
}

func (s *positionService) GetDevicePositions(ctx context.Context, deviceID string) ([]*model.Position, error) {
	if deviceID == "" {
		return nil, errors.New("invalid device ID")
	}
	return s.positionRepo.FindByDeviceID(ctx, deviceID)
}

func (s *positionService) GetLatestPosition(ctx context.Context, deviceID string) (*model.Position, error) {
	if deviceID == "" {
		return nil, errors.New("invalid device ID")
	}
	return s.positionRepo.FindLatestByDeviceID(ctx, deviceID)
}

type countingReplier struct {
	protocol.Replier
}

func (r countingReplier) Reply(remote net.Addr, payload []byte) error {
	err := r.Replier.Reply(remote, payload)
	if err == nil {
		observability.AcksSent.Inc()
	}
	return err
}
