package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	ingest "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/ingest"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/middleware"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

// TelemetryController handles device-facing telemetry ingestion
type TelemetryController struct {
	ingestService *ingest.Service
	logger        *logger.Logger
}

// NewTelemetryController creates a new telemetry controller
func NewTelemetryController(ingestService *ingest.Service, logger *logger.Logger) *TelemetryController {
	return &TelemetryController{
		ingestService: ingestService,
		logger:        logger,
	}
}

// RegisterRoutes registers the telemetry routes with Gin
func (c *TelemetryController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/telemetry", c.ReceiveTelemetry)
	}
}

// ReceiveTelemetry ingests one telemetry payload reported by a device.
func (c *TelemetryController) ReceiveTelemetry(ctx *gin.Context) {
	var payload map[string]interface{}
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID, _ := middleware.GetOwnerFromGinContext(ctx)

	result, err := c.ingestService.Ingest(ctx, ownerID, payload)
	if err != nil {
		if errors.Is(err, agtmodels.ErrInvalidPayload) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"result": result,
	})
}
