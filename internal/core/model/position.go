package model

import (
	"time"

	"jttracker/internal/core/util"
)

// Attribute keys carried in Position.Attributes.
const (
	KeyAlarm           = "alarm"
	KeyStatus          = "status"
	KeySatellites      = "sat"
	KeyMileage         = "mileage"
	KeyOdometer        = "odometer"
	KeyBatteryLevel    = "batteryLevel"
	KeyCharge          = "charge"
	KeyLBS             = "lbs"
	KeyCableStatus     = "cableStatus"
	KeyMotorLockStatus = "motorLockStatus"
	KeyBackCapStatus   = "backCapStatus"
	KeyCableCutCount   = "cableCutCount"
	KeyMotion          = "motion"
	KeySimType         = "simType"
	KeyHexDump         = "raw"
)

// Alarm tags stored under KeyAlarm.
const (
	AlarmGeofenceEnter = "geofenceEnter"
	AlarmGeofenceExit  = "geofenceExit"
	AlarmCableCut      = "cableCut"
	AlarmVibration     = "vibration"
	AlarmLowBattery    = "lowBattery"
	AlarmBackCapOpen   = "backCapOpen"
	AlarmMotorStuck    = "motorStuck"
)

// CellTower describes the serving cell reported by the terminal.
type CellTower struct {
	MobileCountryCode int   `json:"mcc,omitempty" bson:"mcc,omitempty"`
	MobileNetworkCode int   `json:"mnc,omitempty" bson:"mnc,omitempty"`
	LocationAreaCode  int   `json:"lac" bson:"lac"`
	CellID            int64 `json:"cellId" bson:"cellid"`
	SignalStrength    int   `json:"signalStrength" bson:"signalstrength"`
}

type Position struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"deviceId"`
	Protocol   string         `json:"protocol"`
	Timestamp  time.Time      `json:"timestamp"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Altitude   float64        `json:"altitude,omitempty"`
	Speed      float64        `json:"speed"`
	Course     float64        `json:"course"`
	Valid      bool           `json:"valid"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Network    *CellTower     `json:"network,omitempty"`
}

// NewPosition starts an empty record for a resolved device. Valid defaults to
// true for formats that carry no fix flag.
func NewPosition(deviceID, protocol string) *Position {
	return &Position{
		ID:         util.GenerateID(),
		DeviceID:   deviceID,
		Protocol:   protocol,
		Valid:      true,
		Attributes: make(map[string]any),
	}
}

// Set stores an attribute, replacing any previous value under the same key.
func (p *Position) Set(key string, value any) {
	p.Attributes[key] = value
}

// SetAlarm records an alarm tag when cond holds. A false cond leaves any
// earlier alarm in place.
func (p *Position) SetAlarm(cond bool, alarm string) {
	if cond {
		p.Attributes[KeyAlarm] = alarm
	}
}

// Alarm returns the alarm tag, if any.
func (p *Position) Alarm() string {
	s, _ := p.Attributes[KeyAlarm].(string)
	return s
}
