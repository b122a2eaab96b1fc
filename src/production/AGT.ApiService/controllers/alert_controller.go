package controllers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/middleware"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

// AlertController handles alert listing and resolution
type AlertController struct {
	alertRepo interfaces.AlertRepository
	logger    *logger.Logger
}

// NewAlertController creates a new alert controller
func NewAlertController(alertRepo interfaces.AlertRepository, logger *logger.Logger) *AlertController {
	return &AlertController{
		alertRepo: alertRepo,
		logger:    logger,
	}
}

// RegisterRoutes registers the alert routes with Gin
func (c *AlertController) RegisterRoutes(router *gin.Engine) {
	alerts := router.Group("/api/v1/alerts")
	{
		alerts.GET("", c.ListAlerts)
		alerts.POST("/:alert_id/resolve", c.ResolveAlert)
	}
}

func (c *AlertController) ListAlerts(ctx *gin.Context) {
	ownerID, err := middleware.GetOwnerFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	params := interfaces.AlertQueryParams{
		OwnerID:         ownerID,
		Severity:        agtmodels.Severity(ctx.Query("severity")),
		IncludeResolved: ctx.DefaultQuery("include_resolved", "false") == "true",
		Limit:           limit,
	}

	alerts, err := c.alertRepo.ListAlerts(ctx, params)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (c *AlertController) ResolveAlert(ctx *gin.Context) {
	alertID, err := strconv.ParseInt(ctx.Param("alert_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert_id"})
		return
	}

	ownerID, err := middleware.GetOwnerFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	alert, err := c.alertRepo.ResolveAlert(ctx, alertID, ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, alert)
}
