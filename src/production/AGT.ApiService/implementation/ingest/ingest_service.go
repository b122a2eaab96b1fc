package ingest

import (
	"context"
	"fmt"
	"time"

	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

// AlertEvaluator is the slice of the alerting engine the gateway drives
// after each stored reading.
type AlertEvaluator interface {
	EvaluateReading(ctx context.Context, device *agtmodels.Device, point *agtmodels.DataPoint)
	EvaluateBattery(ctx context.Context, device *agtmodels.Device, level int)
}

// SkippedField records one measurement that could not be stored. Skips are
// per-field: the rest of the payload still lands.
type SkippedField struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Result summarizes one ingestion call.
type Result struct {
	DeviceID string         `json:"device_id"`
	Stored   int            `json:"stored"`
	Skipped  []SkippedField `json:"skipped,omitempty"`
}

// Service is the ingestion gateway. One call resolves the reporting device
// by hardware address, fans the payload's measurements out to per-sensor
// child devices, appends data points and hands each reading to the alerting
// engine.
type Service struct {
	devices        interfaces.DeviceRepository
	points         interfaces.DataPointRepository
	alerts         AlertEvaluator
	defaultOwnerID string
	logger         *logger.Logger
}

func NewService(devices interfaces.DeviceRepository, points interfaces.DataPointRepository,
	alerts AlertEvaluator, defaultOwnerID string, log *logger.Logger) *Service {
	return &Service{
		devices:        devices,
		points:         points,
		alerts:         alerts,
		defaultOwnerID: defaultOwnerID,
		logger:         log.WithComponent("ingest-gateway"),
	}
}

// Ingest processes one telemetry payload. mac_address is the only required
// field; everything else is best-effort. Unknown keys are ignored, malformed
// measurement values are skipped field by field, and alerting failures never
// surface to the device.
func (s *Service) Ingest(ctx context.Context, ownerID string, payload map[string]interface{}) (*Result, error) {
	mac, _ := payload["mac_address"].(string)
	if mac == "" {
		return nil, fmt.Errorf("%w: mac_address is required", agtmodels.ErrInvalidPayload)
	}
	if ownerID == "" {
		ownerID = s.defaultOwnerID
	}

	now := time.Now().UTC()
	meta := extractMetadata(payload)

	parent, err := s.devices.UpsertByHardwareKey(ctx, agtmodels.Device{
		Name:            "Auto Device " + macTail(mac),
		HardwareAddress: mac,
		OwnerID:         ownerID,
		Kind:            agtmodels.KindSensor,
		SensorKind:      agtmodels.SensorNone,
		Location:        meta.location,
		BatteryLevel:    meta.battery,
		FirmwareVersion: meta.firmware,
		LastSeen:        &now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reporting device: %w", err)
	}

	result := &Result{DeviceID: parent.ID}
	location := parent.Location

	for field, raw := range payload {
		entry, known := measurementCatalog[field]
		if !known {
			continue
		}

		value, err := parseNumeric(raw)
		if err != nil {
			parseErr := &agtmodels.MeasurementParseError{Key: field, Value: raw}
			result.Skipped = append(result.Skipped, SkippedField{Field: field, Reason: parseErr.Error()})
			continue
		}

		sensor, err := s.devices.UpsertByHardwareKey(ctx, agtmodels.Device{
			Name:            entry.NamePrefix + " " + macTail(mac),
			HardwareAddress: mac,
			OwnerID:         parent.OwnerID,
			Kind:            agtmodels.KindSensor,
			SensorKind:      entry.Kind,
			Location:        location,
			LastSeen:        &now,
		})
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedField{Field: field, Reason: err.Error()})
			continue
		}

		point, err := s.points.Append(ctx, agtmodels.DataPoint{
			DeviceID:     sensor.ID,
			Value:        value,
			Unit:         entry.Unit,
			Timestamp:    now,
			QualityScore: 1.0,
		})
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedField{Field: field, Reason: err.Error()})
			continue
		}
		result.Stored++

		s.alerts.EvaluateReading(ctx, sensor, point)
	}

	if meta.battery != nil {
		s.alerts.EvaluateBattery(ctx, parent, *meta.battery)
	}

	s.logger.Debug(fmt.Sprintf("Ingested payload from %s: stored=%d skipped=%d", mac, result.Stored, len(result.Skipped)))
	return result, nil
}

type payloadMetadata struct {
	location string
	battery  *int
	firmware string
}

// extractMetadata pulls the non-measurement keys the devices report
// alongside readings. A malformed battery value is simply dropped.
func extractMetadata(payload map[string]interface{}) payloadMetadata {
	var meta payloadMetadata
	if loc, ok := payload["location"].(string); ok {
		meta.location = loc
	}
	if fw, ok := payload["firmware_version"].(string); ok {
		meta.firmware = fw
	}
	if raw, ok := payload["battery"]; ok {
		if value, err := parseNumeric(raw); err == nil {
			level := int(value)
			meta.battery = &level
		}
	}
	return meta
}
