package jt707a

import (
	"jttracker/internal/core/model"
	"jttracker/internal/protocol/codec"
)

// tagState is what the tag handlers of one frame share. It lives for a single
// decode call.
type tagState struct {
	position *model.Position
	// signal is the last tagSignal value, or noSignal.
	signal int
}

// tagHandler consumes the payload that follows a tag byte, starting with its
// length byte. The length byte is not trusted; each tag has a fixed payload.
type tagHandler func(r *codec.Reader, s *tagState) error

var tagHandlers = map[byte]tagHandler{
	tagOdometer:       decodeOdometer,
	tagReserved:       func(*codec.Reader, *tagState) error { return nil },
	tagSignal:         decodeSignal,
	tagSatellites:     decodeSatellites,
	tagBattery:        decodeBattery,
	tagVoltage:        decodeVoltage,
	tagSensor:         decodeSensor,
	tagDebug:          skipPayload(2),
	tagInternetStatus: skipPayload(4),
	tagGPSMileage:     skipPayload(4),
	tagCellTower:      decodeCellTower,
}

func skipPayload(n int) tagHandler {
	return func(r *codec.Reader, _ *tagState) error {
		return r.Skip(1 + n)
	}
}

func decodeOdometer(r *codec.Reader, s *tagState) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	odometer, err := r.Uint32()
	if err != nil {
		return err
	}
	s.position.Set(model.KeyOdometer, int64(odometer))
	return nil
}

func decodeSignal(r *codec.Reader, s *tagState) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	signal, err := r.Uint8()
	if err != nil {
		return err
	}
	s.signal = int(signal)
	return nil
}

func decodeSatellites(r *codec.Reader, s *tagState) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	satellites, err := r.Uint8()
	if err != nil {
		return err
	}
	s.position.Set(model.KeySatellites, int(satellites))
	return nil
}

func decodeBattery(r *codec.Reader, s *tagState) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	battery, err := r.Uint8()
	if err != nil {
		return err
	}
	s.position.Set(model.KeyBatteryLevel, int(battery))
	s.position.SetAlarm(battery <= lowBatteryLevel, model.AlarmLowBattery)
	return nil
}

// decodeVoltage validates the payload; the voltage is not part of the record.
func decodeVoltage(r *codec.Reader, _ *tagState) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	_, err := r.Uint16()
	return err
}

func decodeSensor(r *codec.Reader, s *tagState) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	cutCount, err := r.Uint16()
	if err != nil {
		return err
	}
	sensor, err := r.Uint8()
	if err != nil {
		return err
	}

	p := s.position
	p.Set(model.KeyCableCutCount, int(cutCount))
	p.SetAlarm(codec.Check(sensor, sensorCableCut), model.AlarmCableCut)
	p.Set(model.KeyCableStatus, codec.Check(sensor, sensorCableCut))
	p.Set(model.KeyMotion, codec.Check(sensor, sensorMotion))
	if codec.Check(sensor, sensorESIM) {
		p.Set(model.KeySimType, simTypeESIM)
	} else {
		p.Set(model.KeySimType, simTypeSIM)
	}
	p.Set(model.KeyBackCapStatus, codec.Check(sensor, sensorBackCap))
	p.Set(model.KeyStatus, int(sensor))
	return nil
}

func decodeCellTower(r *codec.Reader, s *tagState) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	mcc, err := r.Uint16()
	if err != nil {
		return err
	}
	mnc, err := r.Uint8()
	if err != nil {
		return err
	}
	cellID, err := r.Uint32()
	if err != nil {
		return err
	}
	lac, err := r.Uint16()
	if err != nil {
		return err
	}
	s.position.Network = &model.CellTower{
		MobileCountryCode: int(mcc),
		MobileNetworkCode: int(mnc),
		LocationAreaCode:  int(lac),
		CellID:            int64(cellID),
		SignalStrength:    s.signal,
	}
	return nil
}
