package controllers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/middleware"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

// DeviceController handles device management and history requests
type DeviceController struct {
	deviceRepo    interfaces.DeviceRepository
	dataPointRepo interfaces.DataPointRepository
	logger        *logger.Logger
}

// NewDeviceController creates a new device controller
func NewDeviceController(deviceRepo interfaces.DeviceRepository, dataPointRepo interfaces.DataPointRepository, logger *logger.Logger) *DeviceController {
	return &DeviceController{
		deviceRepo:    deviceRepo,
		dataPointRepo: dataPointRepo,
		logger:        logger,
	}
}

// RegisterRoutes registers the device routes with Gin
func (c *DeviceController) RegisterRoutes(router *gin.Engine) {
	devices := router.Group("/api/v1/devices")
	{
		devices.GET("", c.ListDevices)
		devices.GET("/:device_id", c.GetDevice)
		devices.GET("/:device_id/data", c.DeviceHistory)
		devices.DELETE("/:device_id", c.DeleteDevice)
	}
}

// DeviceView is a device plus its most recent reading.
type DeviceView struct {
	agtmodels.Device
	LatestReading *agtmodels.DataPoint `json:"latest_reading,omitempty"`
}

func (c *DeviceController) ListDevices(ctx *gin.Context) {
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

	views := make([]DeviceView, 0, len(devices))
	for i := range devices {
		view := DeviceView{Device: devices[i]}
		if devices[i].IsSensor() {
			latest, err := c.dataPointRepo.LatestByDevice(ctx, devices[i].ID)
			if err == nil {
				view.LatestReading = latest
			}
		}
		views = append(views, view)
	}

	ctx.JSON(http.StatusOK, gin.H{"devices": views, "count": len(views)})
}

func (c *DeviceController) GetDevice(ctx *gin.Context) {
	deviceID := ctx.Param("device_id")

	device, err := c.deviceRepo.GetDevice(ctx, deviceID)
	if err != nil {
		if err == sql.ErrNoRows {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	view := DeviceView{Device: *device}
	if device.IsSensor() {
		if latest, err := c.dataPointRepo.LatestByDevice(ctx, device.ID); err == nil {
			view.LatestReading = latest
		}
	}

	ctx.JSON(http.StatusOK, view)
}

// DeviceHistory returns a device's readings inside a lookback window.
// window is in hours, default 24; limit defaults to 100.
func (c *DeviceController) DeviceHistory(ctx *gin.Context) {
	deviceID := ctx.Param("device_id")

	if _, err := c.deviceRepo.GetDevice(ctx, deviceID); err != nil {
		if err == sql.ErrNoRows {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	windowHours, err := strconv.Atoi(ctx.DefaultQuery("window", "24"))
	if err != nil || windowHours <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
		return
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)
	points, err := c.dataPointRepo.HistoryByDevice(ctx, deviceID, since, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"device_id":    deviceID,
		"window_hours": windowHours,
		"data_points":  points,
		"count":        len(points),
	})
}

// DeleteDevice removes one of the caller's devices and everything recorded
// against it. Other owners' devices read as not found.
func (c *DeviceController) DeleteDevice(ctx *gin.Context) {
	deviceID := ctx.Param("device_id")

	ownerID, err := middleware.GetOwnerFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := c.deviceRepo.DeleteDevice(ctx, deviceID, ownerID); err != nil {
		if err == sql.ErrNoRows {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": true})
}
