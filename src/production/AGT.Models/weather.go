package agtmodels

import "time"

// WeatherSnapshot is one current-conditions observation for a location,
// evaluated against the weather rules but not persisted as time series.
type WeatherSnapshot struct {
	Location      string    `json:"location"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	Precipitation float64   `json:"precipitation"`
	CloudCover    float64   `json:"cloud_cover"`
	Condition     string    `json:"weather_condition"`
	Description   string    `json:"weather_description"`
	RecordedAt    time.Time `json:"recorded_at"`
}
