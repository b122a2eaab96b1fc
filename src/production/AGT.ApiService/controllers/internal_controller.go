package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	ingest "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/ingest"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/middleware"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

// InternalController handles service-to-service endpoints used by the MQTT
// ingestor: batched telemetry forwarding and the health probe its circuit
// breaker watches.
type InternalController struct {
	ingestService     *ingest.Service
	internalAPISecret string
	logger            *logger.Logger
}

// NewInternalController creates a new internal controller
func NewInternalController(ingestService *ingest.Service, internalAPISecret string, logger *logger.Logger) *InternalController {
	return &InternalController{
		ingestService:     ingestService,
		internalAPISecret: internalAPISecret,
		logger:            logger,
	}
}

// TelemetryBatchRequest is the ingestor's forwarding format: raw payloads
// exactly as the devices published them.
type TelemetryBatchRequest struct {
	Payloads []map[string]interface{} `json:"payloads" binding:"required"`
}

// TelemetryBatchResponse reports per-payload results for one batch.
type TelemetryBatchResponse struct {
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Results  []*ingest.Result `json:"results"`
	Errors   []string         `json:"errors,omitempty"`
}

// ReceiveBatch ingests a batch of forwarded payloads. Bad payloads inside
// the batch are counted and reported, they do not fail the whole batch.
func (c *InternalController) ReceiveBatch(ctx *gin.Context) {
	var req TelemetryBatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	resp := TelemetryBatchResponse{}
	for _, payload := range req.Payloads {
		result, err := c.ingestService.Ingest(ctx, "", payload)
		if err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, err.Error())
			if !errors.Is(err, agtmodels.ErrInvalidPayload) {
				c.logger.ErrorWithError(err, "Batch ingestion failed for a payload")
			}
			continue
		}
		resp.Accepted++
		resp.Results = append(resp.Results, result)
	}

	ctx.JSON(http.StatusOK, resp)
}

// Health is the lightweight probe the ingestor's API client polls.
func (c *InternalController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RegisterRoutes registers the internal API routes
func (c *InternalController) RegisterRoutes(router *gin.Engine) {
	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(c.internalAPISecret))

	internal.POST("/telemetry", c.ReceiveBatch)
	internal.GET("/health", c.Health)
}
