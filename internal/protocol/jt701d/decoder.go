package jt701d

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

type header struct {
	uniqueID    string
	version     uint8
	dataType    uint8
	declaredLen uint16
}

// Decode reads one '$' frame strictly in wire order. Any short read drops the
// frame; the acknowledgment is sent only once the whole frame decoded.
func (d *Decoder) Decode(ctx context.Context, remote net.Addr, frame []byte, replier protocol.Replier) (*model.Position, error) {
	r := codec.NewReader(frame)

	marker, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if marker != Marker {
		return nil, errors.Wrapf(protocol.ErrUnknownFrame, "jt701d marker 0x%02x", marker)
	}

	var h header
	idHex, err := r.HexString(idLen)
	if err != nil {
		return nil, err
	}
	if h.uniqueID, err = parseID(idHex); err != nil {
		return nil, err
	}
	deviceID, ok := d.resolver.Resolve(ctx, remote, h.uniqueID)
	if !ok {
		return nil, errors.Wrapf(protocol.ErrDeviceNotFound, "jt701d device %s", h.uniqueID)
	}

	if h.version, err = r.Uint8(); err != nil {
		return nil, err
	}
	if h.dataType, err = r.Uint8(); err != nil {
		return nil, err
	}
	if h.declaredLen, err = r.Uint16(); err != nil {
		return nil, err
	}

	position := model.NewPosition(deviceID, ProtocolName)
	if d.opts.HexDump {
		position.Set(model.KeyHexDump, hex.EncodeToString(frame))
	}

	if err := decodeLocation(r, position); err != nil {
		return nil, err
	}

	mileage, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	position.Set(model.KeyMileage, int64(mileage))

	satellites, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	position.Set(model.KeySatellites, int(satellites))

	if err := r.Skip(vehicleIDLen); err != nil {
		return nil, err
	}

	status, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	decodeStatus(position, status)

	battery, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if battery == batteryOnCharger {
		position.Set(model.KeyCharge, true)
	} else {
		position.Set(model.KeyBatteryLevel, int(battery))
	}

	if position.Network, err = decodeCellTower(r); err != nil {
		return nil, err
	}

	if err := r.Skip(geofenceIDLen + reservedLen); err != nil {
		return nil, err
	}
	if err := r.Skip(r.Len() - sequenceLen); err != nil {
		return nil, err
	}
	sequence, err := r.Uint8()
	if err != nil {
		return nil, err
	}

	d.logger.Debug("frame decoded",
		zap.String("uniqueId", h.uniqueID),
		zap.Uint8("version", h.version),
		zap.Uint8("dataType", h.dataType),
		zap.Uint16("declaredLength", h.declaredLen),
		zap.Uint8("sequence", sequence))

	d.sendResponse(replier, remote, sequence)
	return position, nil
}

// parseID reads the identifier's hex digits as a decimal number, which also
// drops leading zeros.
func parseID(digits string) (string, error) {
	id, err := protocol.NormalizeUniqueID(digits)
	if err != nil {
		return "", errors.Wrapf(protocol.ErrDeviceNotFound, "jt701d identifier %q is not decimal", digits)
	}
	return id, nil
}

func decodeLocation(r *codec.Reader, position *model.Position) error {
	dt, err := r.ReadDateTime(DateOrder)
	if err != nil {
		return err
	}
	position.Timestamp = dt.Time()

	rawLat, err := r.ReadBCD(coordDigits)
	if err != nil {
		return err
	}
	rawLon, err := r.ReadBCD(coordDigits)
	if err != nil {
		return err
	}
	latitude := codec.DegreesMinutes(rawLat)
	longitude := codec.DegreesMinutes(rawLon)

	flags, err := r.Uint8()
	if err != nil {
		return err
	}
	position.Valid = codec.Check(flags, flagValid)
	if !codec.Check(flags, flagNorth) {
		latitude = -latitude
	}
	if !codec.Check(flags, flagEast) {
		longitude = -longitude
	}
	position.Latitude = latitude
	position.Longitude = longitude

	speed, err := r.ReadBCD(speedDigits)
	if err != nil {
		return err
	}
	position.Speed = float64(speed)

	course, err := r.Uint8()
	if err != nil {
		return err
	}
	position.Course = float64(course) * 2.0
	return nil
}

// decodeStatus maps the status word in wire bit order; a later alarm bit
// replaces an earlier one.
func decodeStatus(position *model.Position, status uint16) {
	position.Set(model.KeyLBS, codec.Check(status, statusLBS))
	position.SetAlarm(codec.Check(status, statusGeofenceEnter), model.AlarmGeofenceEnter)
	position.SetAlarm(codec.Check(status, statusGeofenceExit), model.AlarmGeofenceExit)
	position.SetAlarm(codec.Check(status, statusCableCut), model.AlarmCableCut)
	position.SetAlarm(codec.Check(status, statusVibration), model.AlarmVibration)
	position.Set(model.KeyCableStatus, codec.Check(status, statusCable))
	position.Set(model.KeyMotorLockStatus, codec.Check(status, statusMotorLock))
	position.SetAlarm(codec.Check(status, statusLowBattery), model.AlarmLowBattery)
	position.SetAlarm(codec.Check(status, statusBackCapOpen), model.AlarmBackCapOpen)
	position.Set(model.KeyBackCapStatus, codec.Check(status, statusBackCap))
	position.SetAlarm(codec.Check(status, statusMotorStuck), model.AlarmMotorStuck)
	position.Set(model.KeyStatus, int(status))
}

func decodeCellTower(r *codec.Reader) (*model.CellTower, error) {
	cellID, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	lac, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	signal, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	return &model.CellTower{
		CellID:           int64(cellID),
		LocationAreaCode: int(lac),
		SignalStrength:   int(signal),
	}, nil
}
