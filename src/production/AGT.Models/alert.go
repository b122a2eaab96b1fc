package agtmodels

import "time"

// AlertType classifies what raised an alert.
type AlertType string

const (
	AlertThresholdExceeded   AlertType = "threshold_exceeded"
	AlertDeviceOffline       AlertType = "device_offline"
	AlertBatteryLow          AlertType = "battery_low"
	AlertWeather             AlertType = "weather"
	AlertDataAnomaly         AlertType = "data_anomaly"
	AlertMaintenanceRequired AlertType = "maintenance_required"
)

// Severity levels, lowest to highest.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is an open or resolved anomaly notice. Device alerts carry DeviceID;
// weather-style alerts are keyed by Location instead and leave DeviceID empty.
// At most one unresolved alert exists per (device-or-location, title).
type Alert struct {
	ID             int64      `json:"id" db:"id"`
	DeviceID       string     `json:"device_id,omitempty" db:"device_id"`
	Location       string     `json:"location,omitempty" db:"location"`
	Title          string     `json:"title" db:"title"`
	Message        string     `json:"message" db:"message"`
	AlertType      AlertType  `json:"alert_type" db:"alert_type"`
	Severity       Severity   `json:"severity" db:"severity"`
	ThresholdValue *float64   `json:"threshold_value,omitempty" db:"threshold_value"`
	ActualValue    *float64   `json:"actual_value,omitempty" db:"actual_value"`
	Unit           string     `json:"unit,omitempty" db:"unit"`
	Resolved       bool       `json:"is_resolved" db:"is_resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy     string     `json:"resolved_by,omitempty" db:"resolved_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// DedupKey is the identity the single-open-alert invariant is enforced on.
func (a *Alert) DedupKey() (subject, title string) {
	if a.DeviceID != "" {
		return a.DeviceID, a.Title
	}
	return a.Location, a.Title
}
