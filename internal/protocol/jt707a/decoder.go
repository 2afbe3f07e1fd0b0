package jt707a

import (
	"context"
	"encoding/hex"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
	"jttracker/internal/protocol"
	"jttracker/internal/protocol/codec"
)

type Decoder struct {
	resolver protocol.DeviceResolver
	logger   *zap.Logger
	opts     protocol.Options
}

func NewDecoder(resolver protocol.DeviceResolver, logger *zap.Logger, opts protocol.Options) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{
		resolver: resolver,
		logger:   logger.With(zap.String("protocol", ProtocolName)),
		opts:     opts,
	}
}

// Decode reads the fixed header and then walks the extension tags until the
// end tag or the end of the frame. The replier is unused; these frames are
// not acknowledged.
func (d *Decoder) Decode(ctx context.Context, remote net.Addr, frame []byte, _ protocol.Replier) (*model.Position, error) {
	r := codec.NewReader(frame)

	marker, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if marker != Marker {
		return nil, errors.Wrapf(protocol.ErrUnknownFrame, "jt707a marker 0x%02x", marker)
	}
	if err := r.Skip(messageIDLen + messageLenLen); err != nil {
		return nil, err
	}

	idHex, err := r.HexString(idLen)
	if err != nil {
		return nil, err
	}
	uniqueID, err := protocol.NormalizeUniqueID(idHex)
	if err != nil {
		return nil, errors.Wrapf(protocol.ErrDeviceNotFound, "jt707a identifier %q is not decimal", idHex)
	}
	deviceID, ok := d.resolver.Resolve(ctx, remote, uniqueID)
	if !ok {
		return nil, errors.Wrapf(protocol.ErrDeviceNotFound, "jt707a device %s", uniqueID)
	}

	if err := r.Skip(seriesLen + alarmFlagsLen); err != nil {
		return nil, err
	}
	status, err := r.Uint32()
	if err != nil {
		return nil, err
	}

	position := model.NewPosition(deviceID, ProtocolName)
	if d.opts.HexDump {
		position.Set(model.KeyHexDump, hex.EncodeToString(frame))
	}
	if err := decodeLocation(r, position, status); err != nil {
		return nil, err
	}

	state := &tagState{position: position, signal: noSignal}
	var unknown []byte
	for r.Len() >= 1 {
		tag, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		// A 0x7E tag ends the frame even when bytes follow it, so trailing
		// tags are never read. Treating it as a no-payload tag and reading
		// on would decode them.
		if tag == tagEnd {
			break
		}
		handler, ok := tagHandlers[tag]
		if !ok {
			// Unknown tags are assumed to carry no payload.
			unknown = append(unknown, tag)
			continue
		}
		if err := handler(r, state); err != nil {
			return nil, errors.Wrapf(err, "jt707a tag 0x%02x", tag)
		}
	}

	if len(unknown) > 0 {
		d.logger.Debug("unknown extension tags skipped",
			zap.String("uniqueId", uniqueID),
			zap.String("tags", hex.EncodeToString(unknown)))
	}
	d.logger.Debug("frame decoded",
		zap.String("uniqueId", uniqueID),
		zap.Uint32("status", status),
		zap.Int("trailing", r.Len()))

	return position, nil
}

func decodeLocation(r *codec.Reader, position *model.Position, status uint32) error {
	lat, err := r.Int32()
	if err != nil {
		return err
	}
	lon, err := r.Int32()
	if err != nil {
		return err
	}
	alt, err := r.Int16()
	if err != nil {
		return err
	}

	position.Latitude = codec.Scaled(lat)
	position.Longitude = codec.Scaled(lon)
	if !codec.Check(status, statusEast) {
		position.Longitude = -position.Longitude
	}
	position.Altitude = codec.Scaled(alt)

	speed, err := r.Uint16()
	if err != nil {
		return err
	}
	position.Speed = float64(speed) * 0.1

	course, err := r.Uint16()
	if err != nil {
		return err
	}
	position.Course = float64(course)

	dt, err := r.ReadDateTime(DateOrder)
	if err != nil {
		return err
	}
	position.Timestamp = dt.Time()
	return nil
}
