package model

import (
	"time"

	"jttracker/internal/core/util"
)

const (
	DeviceStatusInactive = "inactive"
	DeviceStatusActive   = "active"
)

// Device is a registered terminal. UniqueID is the decimal identifier the
// terminal puts in its frames.
type Device struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UniqueID    string    `json:"uniqueId"`
	Protocol    string    `json:"protocol,omitempty"`
	Status      string    `json:"status"`
	LastAddress string    `json:"lastAddress,omitempty"`
	LastUpdate  time.Time `json:"lastUpdate"`
	PositionID  string    `json:"positionId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewDevice(name, uniqueID, protocol string) *Device {
	now := time.Now()
	return &Device{
		ID:         util.GenerateID(),
		Name:       name,
		UniqueID:   uniqueID,
		Protocol:   protocol,
		Status:     DeviceStatusInactive,
		LastUpdate: now,
		CreatedAt:  now,
	}
}

// Touch marks the device active after a stored position.
func (d *Device) Touch(position *Position) {
	d.PositionID = position.ID
	d.LastUpdate = position.Timestamp
	d.Status = DeviceStatusActive
}
