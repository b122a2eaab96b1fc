package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/health"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
)

// HealthController handles health requests
type HealthController struct {
	healthChecker *health.HealthChecker
	logger        *logger.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(healthChecker *health.HealthChecker, logger *logger.Logger) *HealthController {
	return &HealthController{
		healthChecker: healthChecker,
		logger:        logger,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
}

func (c *HealthController) Health(ctx *gin.Context) {
	status := c.healthChecker.GetHealthStatus(ctx)

	code := http.StatusOK
	if status["status"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	if err := c.healthChecker.CheckDatabaseHealth(ctx); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"db":     false,
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"db":     true,
	})
}
