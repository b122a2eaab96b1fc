package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/middleware"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

// DashboardController aggregates the owner's farm state into one response
type DashboardController struct {
	deviceRepo    interfaces.DeviceRepository
	dataPointRepo interfaces.DataPointRepository
	alertRepo     interfaces.AlertRepository
	commandRepo   interfaces.CommandRepository
	logger        *logger.Logger
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(deviceRepo interfaces.DeviceRepository, dataPointRepo interfaces.DataPointRepository,
	alertRepo interfaces.AlertRepository, commandRepo interfaces.CommandRepository, logger *logger.Logger) *DashboardController {
	return &DashboardController{
		deviceRepo:    deviceRepo,
		dataPointRepo: dataPointRepo,
		alertRepo:     alertRepo,
		commandRepo:   commandRepo,
		logger:        logger,
	}
}

// RegisterRoutes registers the dashboard routes with Gin
func (c *DashboardController) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/v1/dashboard/stats", c.Stats)
}

// DashboardStats is the aggregate the farm dashboard renders.
type DashboardStats struct {
	TotalDevices   int                             `json:"total_devices"`
	OnlineDevices  int                             `json:"online_devices"`
	Sensors        int                             `json:"sensors"`
	Actuators      int                             `json:"actuators"`
	LatestReadings map[string]*agtmodels.DataPoint `json:"latest_readings"`
	OpenAlerts     []agtmodels.Alert               `json:"open_alerts"`
	RecentCommands []agtmodels.Command             `json:"recent_commands"`
}

func (c *DashboardController) Stats(ctx *gin.Context) {
	ownerID, err := middleware.GetOwnerFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	devices, err := c.deviceRepo.ListDevicesByOwner(ctx, ownerID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stats := DashboardStats{
		LatestReadings: make(map[string]*agtmodels.DataPoint),
	}

	for i := range devices {
		device := &devices[i]
		stats.TotalDevices++
		if device.Online {
			stats.OnlineDevices++
		}
		switch device.Kind {
		case agtmodels.KindSensor:
			stats.Sensors++
		case agtmodels.KindActuator:
			stats.Actuators++

			recent, err := c.commandRepo.ListByDevice(ctx, device.ID, 5)
			if err == nil {
				stats.RecentCommands = append(stats.RecentCommands, recent...)
			}
		}

		// One latest reading per sensor kind, first sensor wins.
		if device.IsSensor() {
			kind := string(device.SensorKind)
			if _, seen := stats.LatestReadings[kind]; !seen {
				if latest, err := c.dataPointRepo.LatestByDevice(ctx, device.ID); err == nil && latest != nil {
					stats.LatestReadings[kind] = latest
				}
			}
		}
	}

	open, err := c.alertRepo.ListAlerts(ctx, interfaces.AlertQueryParams{OwnerID: ownerID, Limit: 5})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats.OpenAlerts = open

	ctx.JSON(http.StatusOK, stats)
}
