package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	weather "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/weather"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
)

// WeatherController exposes current conditions for a farm location
type WeatherController struct {
	weatherService *weather.Service
	logger         *logger.Logger
}

// NewWeatherController creates a new weather controller
func NewWeatherController(weatherService *weather.Service, logger *logger.Logger) *WeatherController {
	return &WeatherController{
		weatherService: weatherService,
		logger:         logger,
	}
}

// RegisterRoutes registers the weather routes with Gin
func (c *WeatherController) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/v1/weather/current", c.Current)
}

// Current fetches a snapshot for ?location (default from config) and runs it
// through the weather alert rules before returning it.
func (c *WeatherController) Current(ctx *gin.Context) {
	snapshot, err := c.weatherService.Fetch(ctx, ctx.Query("location"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, snapshot)
}
