// Package jt701d decodes the fixed-layout binary location frames sent by
// JT701D family terminals. Frames start with '$' and are acknowledged with a
// short ASCII reply.
package jt701d

import "jttracker/internal/protocol/codec"

const (
	ProtocolName = "jt701d"
	Marker       = '$'
	// DateOrder is the digit order of the BCD timestamp.
	DateOrder = codec.DayMonthYear
)

// Field sizes of the frame, in wire order. The declared payload length is
// read but parsing trusts these offsets instead.
const (
	idLen          = 5
	vehicleIDLen   = 4
	geofenceIDLen  = 1
	reservedLen    = 3
	coordDigits    = 8
	speedDigits    = 2
	sequenceLen    = 1
	minFrameLength = 49
)

// Sign byte of the location block.
const (
	flagValid        = 0
	flagNorth        = 1
	flagEast         = 2
	batteryOnCharger = 0xFF
)

// Status word bits.
const (
	statusLBS           = 0
	statusGeofenceEnter = 1
	statusGeofenceExit  = 2
	statusCableCut      = 3
	statusVibration     = 4
	statusCable         = 6
	statusMotorLock     = 7
	statusLowBattery    = 8 + 3
	statusBackCapOpen   = 8 + 4
	statusBackCap       = 8 + 5
	statusMotorStuck    = 8 + 6
)
