package alerting

import (
	"context"
	"path/filepath"
	"testing"

	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	implementation "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Implementation"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

func testThresholds() config.AlertingConfig {
	return config.AlertingConfig{
		FrostBelow:    3.0,
		HeatwaveAbove: 40.0,
		WindAbove:     50.0,
		RainAbove:     20.0,
		BatteryBelow:  20.0,
	}
}

func newTestEngine(t *testing.T) (*Engine, interfaces.AlertRepository, interfaces.DeviceRepository) {
	t.Helper()

	db, err := implementation.OpenSQLite(filepath.Join(t.TempDir(), "alerting.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := implementation.NewSchemaManager(db, implementation.DialectSQLite).CreateTables(context.Background()); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	alerts := implementation.NewSQLAlertRepository(db, implementation.DialectSQLite)
	devices := implementation.NewSQLDeviceRepository(db, implementation.DialectSQLite)
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})

	return NewEngine(alerts, testThresholds(), log), alerts, devices
}

func seedSensor(t *testing.T, devices interfaces.DeviceRepository, kind agtmodels.SensorKind) *agtmodels.Device {
	t.Helper()

	device, err := devices.CreateDevice(context.Background(), agtmodels.Device{
		Name:       "Field Sensor",
		OwnerID:    "owner-1",
		Kind:       agtmodels.KindSensor,
		SensorKind: kind,
	})
	if err != nil {
		t.Fatalf("create device: %v", err)
	}
	return device
}

func openAlerts(t *testing.T, alerts interfaces.AlertRepository, ownerID string) []agtmodels.Alert {
	t.Helper()

	list, err := alerts.ListAlerts(context.Background(), interfaces.AlertQueryParams{OwnerID: ownerID})
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	return list
}

func TestEvaluateReadingFrost(t *testing.T) {
	engine, alerts, devices := newTestEngine(t)
	device := seedSensor(t, devices, agtmodels.SensorTemperature)
	ctx := context.Background()

	engine.EvaluateReading(ctx, device, &agtmodels.DataPoint{DeviceID: device.ID, Value: 1.5, Unit: "°C"})

	list := openAlerts(t, alerts, "owner-1")
	if len(list) != 1 {
		t.Fatalf("expected one frost alert, got %d", len(list))
	}
	a := list[0]
	if a.Title != TitleFrost || a.Severity != agtmodels.SeverityHigh {
		t.Fatalf("unexpected alert: %+v", a)
	}
	if a.ActualValue == nil || *a.ActualValue != 1.5 {
		t.Errorf("actual value not recorded: %+v", a.ActualValue)
	}
	if a.ThresholdValue == nil || *a.ThresholdValue != 3.0 {
		t.Errorf("threshold not recorded: %+v", a.ThresholdValue)
	}
}

func TestEvaluateReadingHeatwave(t *testing.T) {
	engine, alerts, devices := newTestEngine(t)
	device := seedSensor(t, devices, agtmodels.SensorTemperature)

	engine.EvaluateReading(context.Background(), device, &agtmodels.DataPoint{DeviceID: device.ID, Value: 43.2, Unit: "°C"})

	list := openAlerts(t, alerts, "owner-1")
	if len(list) != 1 || list[0].Title != TitleHeat {
		t.Fatalf("expected heat alert, got %+v", list)
	}
}

func TestEvaluateReadingNormalAndNonTemperature(t *testing.T) {
	engine, alerts, devices := newTestEngine(t)
	temp := seedSensor(t, devices, agtmodels.SensorTemperature)
	humidity := seedSensor(t, devices, agtmodels.SensorHumidity)
	ctx := context.Background()

	engine.EvaluateReading(ctx, temp, &agtmodels.DataPoint{DeviceID: temp.ID, Value: 22.0, Unit: "°C"})
	engine.EvaluateReading(ctx, humidity, &agtmodels.DataPoint{DeviceID: humidity.ID, Value: 1.0, Unit: "%"})

	if list := openAlerts(t, alerts, "owner-1"); len(list) != 0 {
		t.Fatalf("expected no alerts, got %+v", list)
	}
}

func TestEvaluateReadingDedupUntilResolved(t *testing.T) {
	engine, alerts, devices := newTestEngine(t)
	device := seedSensor(t, devices, agtmodels.SensorTemperature)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		engine.EvaluateReading(ctx, device, &agtmodels.DataPoint{DeviceID: device.ID, Value: -2.0, Unit: "°C"})
	}
	list := openAlerts(t, alerts, "owner-1")
	if len(list) != 1 {
		t.Fatalf("repeated firing must keep one open alert, got %d", len(list))
	}

	if _, err := alerts.ResolveAlert(ctx, list[0].ID, "owner-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	engine.EvaluateReading(ctx, device, &agtmodels.DataPoint{DeviceID: device.ID, Value: -2.0, Unit: "°C"})

	list = openAlerts(t, alerts, "owner-1")
	if len(list) != 1 {
		t.Fatalf("condition persisting after resolution must reopen, got %d", len(list))
	}
}

func TestEvaluateBattery(t *testing.T) {
	engine, alerts, devices := newTestEngine(t)
	device := seedSensor(t, devices, agtmodels.SensorTemperature)
	ctx := context.Background()

	engine.EvaluateBattery(ctx, device, 55)
	if list := openAlerts(t, alerts, "owner-1"); len(list) != 0 {
		t.Fatalf("healthy battery must not alert, got %+v", list)
	}

	engine.EvaluateBattery(ctx, device, 12)
	engine.EvaluateBattery(ctx, device, 11)

	list := openAlerts(t, alerts, "owner-1")
	if len(list) != 1 {
		t.Fatalf("expected one battery alert, got %d", len(list))
	}
	if list[0].Title != TitleLowBattery || list[0].AlertType != agtmodels.AlertBatteryLow {
		t.Fatalf("unexpected alert: %+v", list[0])
	}
}

func TestEvaluateOffline(t *testing.T) {
	engine, alerts, devices := newTestEngine(t)
	device := seedSensor(t, devices, agtmodels.SensorTemperature)
	ctx := context.Background()

	engine.EvaluateOffline(ctx, device)
	engine.EvaluateOffline(ctx, device)

	list := openAlerts(t, alerts, "owner-1")
	if len(list) != 1 {
		t.Fatalf("expected single offline alert, got %d", len(list))
	}
	if list[0].Title != TitleOffline || list[0].Severity != agtmodels.SeverityHigh {
		t.Fatalf("unexpected alert: %+v", list[0])
	}
}

func TestEvaluateWeather(t *testing.T) {
	engine, alerts, _ := newTestEngine(t)
	ctx := context.Background()

	engine.EvaluateWeather(ctx, &agtmodels.WeatherSnapshot{
		Location:      "Tunis",
		Temperature:   1.0,
		WindSpeed:     62.0,
		Precipitation: 25.0,
	})

	list := openAlerts(t, alerts, "anyone")
	if len(list) != 3 {
		t.Fatalf("expected frost, wind and rain alerts, got %d: %+v", len(list), list)
	}
	titles := map[string]bool{}
	for _, a := range list {
		titles[a.Title] = true
		if a.DeviceID != "" {
			t.Errorf("weather alert must not carry a device: %+v", a)
		}
		if a.Location != "Tunis" {
			t.Errorf("weather alert must carry the location: %+v", a)
		}
	}
	if !titles[TitleFrost] || !titles[TitleWind] || !titles[TitleRain] {
		t.Fatalf("missing expected titles: %v", titles)
	}

	// Same snapshot again must not duplicate anything.
	engine.EvaluateWeather(ctx, &agtmodels.WeatherSnapshot{
		Location:      "Tunis",
		Temperature:   1.0,
		WindSpeed:     62.0,
		Precipitation: 25.0,
	})
	if list := openAlerts(t, alerts, "anyone"); len(list) != 3 {
		t.Fatalf("weather dedup failed, got %d alerts", len(list))
	}

	// A different location is a separate dedup subject.
	engine.EvaluateWeather(ctx, &agtmodels.WeatherSnapshot{Location: "Sfax", Temperature: -1.0})
	if list := openAlerts(t, alerts, "anyone"); len(list) != 4 {
		t.Fatalf("expected new alert for second location, got %d", len(list))
	}
}
