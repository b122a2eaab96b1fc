package agtmodels

import "time"

// Device represents a logical sensor, actuator, gateway or camera. Several
// logical devices may share one hardware address (one per sensor channel on
// the physical unit); identity is (hardware_address, sensor_kind).
type Device struct {
	ID              string     `json:"id" db:"device_id"`
	Name            string     `json:"name" db:"name"`
	HardwareAddress string     `json:"hardware_address,omitempty" db:"hardware_address"`
	OwnerID         string     `json:"owner_id" db:"owner_id"`
	Kind            DeviceKind `json:"device_type" db:"device_type"`
	SensorKind      SensorKind `json:"sensor_type,omitempty" db:"sensor_type"`
	Location        string     `json:"location" db:"location"`
	Latitude        *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64   `json:"longitude,omitempty" db:"longitude"`
	Online          bool       `json:"is_online" db:"is_online"`
	LastSeen        *time.Time `json:"last_seen,omitempty" db:"last_seen"`
	BatteryLevel    *int       `json:"battery_level,omitempty" db:"battery_level"`
	FirmwareVersion string     `json:"firmware_version,omitempty" db:"firmware_version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsSensor reports whether the device carries a sensor channel.
func (d *Device) IsSensor() bool {
	return d.Kind == KindSensor && d.SensorKind != SensorNone
}
