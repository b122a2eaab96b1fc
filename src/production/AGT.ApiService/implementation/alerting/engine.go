package alerting

import (
	"context"
	"fmt"

	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

// Alert titles double as the dedup discriminator within a subject, so they
// stay fixed while messages carry the measured values.
const (
	TitleFrost      = "Frost Warning"
	TitleHeat       = "Heat Warning"
	TitleRain       = "Heavy Rain Warning"
	TitleWind       = "Strong Wind Warning"
	TitleLowBattery = "Low Battery Warning"
	TitleOffline    = "Device Offline"
)

// Engine evaluates threshold rules against readings, battery reports,
// liveness flips and weather snapshots, and records at most one open alert
// per (subject, title). It never escalates and never auto-resolves.
type Engine struct {
	alerts     interfaces.AlertRepository
	thresholds config.AlertingConfig
	logger     *logger.Logger
}

func NewEngine(alerts interfaces.AlertRepository, thresholds config.AlertingConfig, log *logger.Logger) *Engine {
	return &Engine{
		alerts:     alerts,
		thresholds: thresholds,
		logger:     log.WithComponent("alerting-engine"),
	}
}

// EvaluateReading applies the temperature rules to a stored data point.
// Non-temperature readings pass through without evaluation.
func (e *Engine) EvaluateReading(ctx context.Context, device *agtmodels.Device, point *agtmodels.DataPoint) {
	if device.SensorKind != agtmodels.SensorTemperature {
		return
	}

	value := point.Value
	switch {
	case value < e.thresholds.FrostBelow:
		e.raise(ctx, agtmodels.Alert{
			DeviceID:       device.ID,
			Title:          TitleFrost,
			Message:        fmt.Sprintf("Frost risk detected. Temperature is %.1f°C. Protect sensitive crops.", value),
			AlertType:      agtmodels.AlertThresholdExceeded,
			Severity:       agtmodels.SeverityHigh,
			ThresholdValue: &e.thresholds.FrostBelow,
			ActualValue:    &value,
			Unit:           point.Unit,
		})
	case value > e.thresholds.HeatwaveAbove:
		e.raise(ctx, agtmodels.Alert{
			DeviceID:       device.ID,
			Title:          TitleHeat,
			Message:        fmt.Sprintf("Extreme heat warning. Temperature is %.1f°C. Take precautions.", value),
			AlertType:      agtmodels.AlertThresholdExceeded,
			Severity:       agtmodels.SeverityHigh,
			ThresholdValue: &e.thresholds.HeatwaveAbove,
			ActualValue:    &value,
			Unit:           point.Unit,
		})
	}
}

// EvaluateBattery applies the low-battery rule to a reported battery level.
func (e *Engine) EvaluateBattery(ctx context.Context, device *agtmodels.Device, level int) {
	value := float64(level)
	if value >= e.thresholds.BatteryBelow {
		return
	}

	e.raise(ctx, agtmodels.Alert{
		DeviceID:       device.ID,
		Title:          TitleLowBattery,
		Message:        fmt.Sprintf("Battery level of %s is at %d%%. Replace or recharge soon.", device.Name, level),
		AlertType:      agtmodels.AlertBatteryLow,
		Severity:       agtmodels.SeverityMedium,
		ThresholdValue: &e.thresholds.BatteryBelow,
		ActualValue:    &value,
		Unit:           "%",
	})
}

// EvaluateOffline raises the device_offline alert after a liveness flip.
func (e *Engine) EvaluateOffline(ctx context.Context, device *agtmodels.Device) {
	message := fmt.Sprintf("Device %s stopped reporting.", device.Name)
	if device.LastSeen != nil {
		message = fmt.Sprintf("Device %s stopped reporting. Last seen at %s.",
			device.Name, device.LastSeen.UTC().Format("2006-01-02 15:04:05"))
	}

	e.raise(ctx, agtmodels.Alert{
		DeviceID:  device.ID,
		Title:     TitleOffline,
		Message:   message,
		AlertType: agtmodels.AlertDeviceOffline,
		Severity:  agtmodels.SeverityHigh,
	})
}

// EvaluateWeather applies the frost, heat, wind and rain rules to a
// location-keyed snapshot. Weather alerts carry no device and dedup on
// (location, title).
func (e *Engine) EvaluateWeather(ctx context.Context, snapshot *agtmodels.WeatherSnapshot) {
	temp := snapshot.Temperature
	if temp < e.thresholds.FrostBelow {
		e.raise(ctx, agtmodels.Alert{
			Location:       snapshot.Location,
			Title:          TitleFrost,
			Message:        fmt.Sprintf("Frost risk detected. Temperature is %.1f°C. Protect sensitive crops.", temp),
			AlertType:      agtmodels.AlertWeather,
			Severity:       agtmodels.SeverityHigh,
			ThresholdValue: &e.thresholds.FrostBelow,
			ActualValue:    &temp,
			Unit:           "°C",
		})
	} else if temp > e.thresholds.HeatwaveAbove {
		e.raise(ctx, agtmodels.Alert{
			Location:       snapshot.Location,
			Title:          TitleHeat,
			Message:        fmt.Sprintf("Extreme heat warning. Temperature is %.1f°C. Take precautions.", temp),
			AlertType:      agtmodels.AlertWeather,
			Severity:       agtmodels.SeverityHigh,
			ThresholdValue: &e.thresholds.HeatwaveAbove,
			ActualValue:    &temp,
			Unit:           "°C",
		})
	}

	if wind := snapshot.WindSpeed; wind > e.thresholds.WindAbove {
		e.raise(ctx, agtmodels.Alert{
			Location:       snapshot.Location,
			Title:          TitleWind,
			Message:        fmt.Sprintf("Strong winds detected: %.1f km/h. Secure equipment and structures.", wind),
			AlertType:      agtmodels.AlertWeather,
			Severity:       agtmodels.SeverityMedium,
			ThresholdValue: &e.thresholds.WindAbove,
			ActualValue:    &wind,
			Unit:           "km/h",
		})
	}

	if rain := snapshot.Precipitation; rain > e.thresholds.RainAbove {
		e.raise(ctx, agtmodels.Alert{
			Location:       snapshot.Location,
			Title:          TitleRain,
			Message:        fmt.Sprintf("Heavy rainfall detected: %.1fmm. Check drainage systems.", rain),
			AlertType:      agtmodels.AlertWeather,
			Severity:       agtmodels.SeverityMedium,
			ThresholdValue: &e.thresholds.RainAbove,
			ActualValue:    &rain,
			Unit:           "mm",
		})
	}
}

// raise stores the alert unless an open one already holds the dedup key.
// Failures are logged and swallowed; alerting is best-effort for callers.
func (e *Engine) raise(ctx context.Context, alert agtmodels.Alert) {
	stored, created, err := e.alerts.CreateAlert(ctx, alert)
	if err != nil {
		e.logger.ErrorWithError(err, fmt.Sprintf("Failed to create alert %q", alert.Title))
		return
	}
	if created {
		e.logger.Info(fmt.Sprintf("Alert raised: %q severity=%s id=%d", stored.Title, stored.Severity, stored.ID))
	}
}
