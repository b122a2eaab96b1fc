package agtmodels

import "time"

// DataPoint is one immutable sensor reading. Rows are append-only; storage
// order is arrival order, which is not necessarily timestamp order, so
// "latest" queries sort by timestamp with the row id as tie-breaker.
type DataPoint struct {
	ID           int64     `json:"id" db:"id"`
	DeviceID     string    `json:"device_id" db:"device_id"`
	Value        float64   `json:"value" db:"value"`
	Unit         string    `json:"unit" db:"unit"`
	Timestamp    time.Time `json:"timestamp" db:"ts"`
	QualityScore float64   `json:"quality_score" db:"quality_score"`
}
