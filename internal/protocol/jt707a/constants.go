// Package jt707a decodes the '~' tracker frames: a fixed header and location
// block followed by tagged extension fields.
package jt707a

import "jttracker/internal/protocol/codec"

const (
	ProtocolName = "jt707a"
	Marker       = '~'
	// DateOrder is the digit order of the BCD timestamp.
	DateOrder = codec.YearMonthDay
)

// Header layout, in wire order after the marker.
const (
	messageIDLen  = 2
	messageLenLen = 2
	idLen         = 6
	seriesLen     = 2
	alarmFlagsLen = 4
	headerLength  = 1 + messageIDLen + messageLenLen + idLen + seriesLen + alarmFlagsLen + 4 + 4 + 4 + 2 + 2 + 2 + 6
)

// Status word bit that marks an eastern longitude. A clear bit negates it.
const statusEast = 2

// Extension tags.
const (
	tagEnd            byte = 0x7E
	tagOdometer       byte = 0x01
	tagReserved       byte = 0x05
	tagSignal         byte = 0x30
	tagSatellites     byte = 0x31
	tagBattery        byte = 0xD4
	tagVoltage        byte = 0xD5
	tagSensor         byte = 0xDA
	tagDebug          byte = 0xDB
	tagInternetStatus byte = 0xDC
	tagCellTower      byte = 0xFD
	tagGPSMileage     byte = 0xFE
)

// Sensor byte bits carried by tagSensor.
const (
	sensorCableCut = 0
	sensorMotion   = 1
	sensorESIM     = 2
	sensorBackCap  = 3
)

const (
	lowBatteryLevel = 10
	noSignal        = -1

	simTypeESIM = "ESIM"
	simTypeSIM  = "SIM"
)
