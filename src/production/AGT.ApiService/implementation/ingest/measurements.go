package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

// measurement describes one entry of the static catalog that maps raw
// payload keys to a sensor kind, its canonical unit and the auto-register
// device name prefix. Payload keys outside the catalog are ignored.
type measurement struct {
	Kind       agtmodels.SensorKind
	Unit       string
	NamePrefix string
}

var measurementCatalog = map[string]measurement{
	"temp":          {agtmodels.SensorTemperature, "°C", "Temperature Sensor"},
	"temperature":   {agtmodels.SensorTemperature, "°C", "Temperature Sensor"},
	"humidity":      {agtmodels.SensorHumidity, "%", "Humidity Sensor"},
	"soil":          {agtmodels.SensorSoilMoisture, "units", "Soil Sensor"},
	"soil_moisture": {agtmodels.SensorSoilMoisture, "units", "Soil Sensor"},
	"light":         {agtmodels.SensorLight, "lux", "Light Sensor"},
	"ph":            {agtmodels.SensorPH, "pH", "pH Sensor"},
	"nutrient":      {agtmodels.SensorNutrient, "ppm", "Nutrient Sensor"},
}

// parseNumeric accepts the value shapes devices actually send: JSON numbers,
// numeric strings and integers.
func parseNumeric(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("not a numeric string: %q", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}

// macTail is the short device-name suffix derived from the hardware address.
func macTail(mac string) string {
	if len(mac) <= 6 {
		return mac
	}
	return mac[len(mac)-6:]
}
