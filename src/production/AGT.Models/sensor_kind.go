package agtmodels

// DeviceKind classifies a logical device.
type DeviceKind string

const (
	KindSensor   DeviceKind = "sensor"
	KindActuator DeviceKind = "actuator"
	KindGateway  DeviceKind = "gateway"
	KindCamera   DeviceKind = "camera"
)

// SensorKind is the canonical sensor channel a logical device represents.
// Empty for non-sensor devices.
type SensorKind string

const (
	SensorNone         SensorKind = ""
	SensorTemperature  SensorKind = "temperature"
	SensorHumidity     SensorKind = "humidity"
	SensorSoilMoisture SensorKind = "soil_moisture"
	SensorLight        SensorKind = "light"
	SensorPH           SensorKind = "ph"
	SensorNutrient     SensorKind = "nutrient"
	SensorCamera       SensorKind = "camera"
	SensorOther        SensorKind = "other"
)

// Valid reports whether k is one of the known sensor kinds.
func (k SensorKind) Valid() bool {
	switch k {
	case SensorNone, SensorTemperature, SensorHumidity, SensorSoilMoisture,
		SensorLight, SensorPH, SensorNutrient, SensorCamera, SensorOther:
		return true
	}
	return false
}
