// Command startup prepares the state store for a fresh deployment: it
// applies the schema and, with -seed, creates a demo farm under the
// default owner so the dashboard has something to show.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	container "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Container"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	implementation "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Implementation"
)

func main() {
	seed := flag.Bool("seed", false, "seed demo devices and readings after applying the schema")
	flag.Parse()

	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to apply schema")
	}
	logger.Info("Schema applied")

	if !*seed {
		return
	}

	if err := seedDemoFarm(ctx, ctr); err != nil {
		logger.FatalWithError(err, "Failed to seed demo data")
	}
	logger.Info("Demo farm seeded")
}

// seedDemoFarm registers a small set of devices the way the ingestion path
// would: sensors keyed by hardware address plus one actuator. Running it
// twice reuses the same rows.
func seedDemoFarm(ctx context.Context, ctr *container.Container) error {
	db, err := ctr.GetDatabase()
	if err != nil {
		return err
	}
	dialect := ctr.GetDialect()
	devices := implementation.NewSQLDeviceRepository(db, dialect)
	points := implementation.NewSQLDataPointRepository(db, dialect)

	owner := ctr.GetConfig().Identity.DefaultOwnerID
	now := time.Now().UTC()

	sensors := []struct {
		name  string
		kind  agtmodels.SensorKind
		unit  string
		value float64
	}{
		{"Greenhouse Temperature", agtmodels.SensorTemperature, "°C", 21.4},
		{"Greenhouse Humidity", agtmodels.SensorHumidity, "%", 58.0},
		{"Greenhouse Soil Moisture", agtmodels.SensorSoilMoisture, "units", 412.0},
	}

	for _, s := range sensors {
		dev, err := devices.UpsertByHardwareKey(ctx, agtmodels.Device{
			Name:            s.name,
			HardwareAddress: "de:mo:00:00:00:01",
			OwnerID:         owner,
			Kind:            agtmodels.KindSensor,
			SensorKind:      s.kind,
			Location:        "Demo Greenhouse",
			LastSeen:        &now,
		})
		if err != nil {
			return fmt.Errorf("seeding %s: %w", s.name, err)
		}

		if _, err := points.Append(ctx, agtmodels.DataPoint{
			DeviceID:     dev.ID,
			Value:        s.value,
			Unit:         s.unit,
			Timestamp:    now,
			QualityScore: 1.0,
		}); err != nil {
			return fmt.Errorf("seeding reading for %s: %w", s.name, err)
		}
	}

	pump, err := devices.FirstActuatorByOwner(ctx, owner)
	if err != nil {
		return err
	}
	if pump == nil {
		if _, err := devices.CreateDevice(ctx, agtmodels.Device{
			Name:     "Water Pump",
			OwnerID:  owner,
			Kind:     agtmodels.KindActuator,
			Location: "Demo Greenhouse",
		}); err != nil {
			return fmt.Errorf("seeding actuator: %w", err)
		}
	}

	return nil
}
