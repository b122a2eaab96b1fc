package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

// WeatherEvaluator runs a snapshot through the weather threshold rules.
type WeatherEvaluator interface {
	EvaluateWeather(ctx context.Context, snapshot *agtmodels.WeatherSnapshot)
}

// Service fetches current conditions for a location. With an API key it
// queries an OpenWeatherMap-compatible endpoint; without one, or when the
// upstream misbehaves, it synthesizes a plausible snapshot so the rest of
// the pipeline keeps working. Every snapshot is evaluated for alerts.
type Service struct {
	cfg    config.WeatherConfig
	alerts WeatherEvaluator
	client *http.Client
	logger *logger.Logger
}

func NewService(cfg config.WeatherConfig, alerts WeatherEvaluator, log *logger.Logger) *Service {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		cfg:    cfg,
		alerts: alerts,
		client: &http.Client{Timeout: timeout},
		logger: log.WithComponent("weather-service"),
	}
}

// owmResponse is the slice of the OpenWeatherMap current-conditions document
// the service consumes.
type owmResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Fetch returns a current-conditions snapshot for the location, falling back
// to the configured default location when empty. Fetch never fails: upstream
// errors degrade to a synthesized snapshot.
func (s *Service) Fetch(ctx context.Context, location string) (*agtmodels.WeatherSnapshot, error) {
	if location == "" {
		location = s.cfg.DefaultLocation
	}

	var snapshot *agtmodels.WeatherSnapshot
	if s.cfg.APIKey == "" {
		snapshot = s.mockSnapshot(location)
	} else {
		fetched, err := s.fetchRemote(ctx, location)
		if err != nil {
			s.logger.ErrorWithError(err, fmt.Sprintf("Weather fetch for %q failed, using synthesized snapshot", location))
			fetched = s.mockSnapshot(location)
		}
		snapshot = fetched
	}

	s.alerts.EvaluateWeather(ctx, snapshot)
	return snapshot, nil
}

func (s *Service) fetchRemote(ctx context.Context, location string) (*agtmodels.WeatherSnapshot, error) {
	endpoint := fmt.Sprintf("%s?q=%s&appid=%s&units=metric",
		s.cfg.BaseURL, url.QueryEscape(location), url.QueryEscape(s.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var doc owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	snapshot := &agtmodels.WeatherSnapshot{
		Location:      location,
		Latitude:      doc.Coord.Lat,
		Longitude:     doc.Coord.Lon,
		Temperature:   doc.Main.Temp,
		Humidity:      doc.Main.Humidity,
		Pressure:      doc.Main.Pressure,
		WindSpeed:     doc.Wind.Speed,
		WindDirection: doc.Wind.Deg,
		Precipitation: doc.Rain.OneHour,
		CloudCover:    doc.Clouds.All,
		RecordedAt:    time.Now().UTC(),
	}
	if len(doc.Weather) > 0 {
		snapshot.Condition = strings.ToLower(doc.Weather[0].Main)
		snapshot.Description = doc.Weather[0].Description
	}
	return snapshot, nil
}

// mockSnapshot synthesizes benign conditions centred on northern Tunisia.
func (s *Service) mockSnapshot(location string) *agtmodels.WeatherSnapshot {
	conditions := []struct{ condition, description string }{
		{"clear", "Clear sky"},
		{"cloudy", "Partly cloudy"},
		{"rain", "Light rain"},
		{"sunny", "Sunny"},
	}
	pick := conditions[rand.Intn(len(conditions))]

	return &agtmodels.WeatherSnapshot{
		Location:      location,
		Latitude:      36.8065 + rand.Float64()*0.2 - 0.1,
		Longitude:     10.1815 + rand.Float64()*0.2 - 0.1,
		Temperature:   15 + rand.Float64()*20,
		Humidity:      30 + rand.Float64()*50,
		Pressure:      1000 + rand.Float64()*20,
		WindSpeed:     rand.Float64() * 15,
		WindDirection: rand.Float64() * 360,
		Precipitation: rand.Float64() * 5,
		CloudCover:    rand.Float64() * 100,
		Condition:     pick.condition,
		Description:   pick.description,
		RecordedAt:    time.Now().UTC(),
	}
}
