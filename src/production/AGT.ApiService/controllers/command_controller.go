package controllers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	commands "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/commands"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/middleware"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

// CommandController handles command dispatch, device polling and outcome
// reporting
type CommandController struct {
	commandService *commands.Service
	logger         *logger.Logger
}

// NewCommandController creates a new command controller
func NewCommandController(commandService *commands.Service, logger *logger.Logger) *CommandController {
	return &CommandController{
		commandService: commandService,
		logger:         logger,
	}
}

// RegisterRoutes registers the command routes with Gin
func (c *CommandController) RegisterRoutes(router *gin.Engine) {
	cmds := router.Group("/api/v1/commands")
	{
		cmds.POST("", c.IssueCommand)
		cmds.GET("", c.CommandHistory)
		cmds.GET("/poll", c.PollCommand)
		cmds.POST("/:command_id/outcome", c.ReportOutcome)
	}
}

type IssueCommandRequest struct {
	DeviceID   string                 `json:"device_id"`
	Command    string                 `json:"command" binding:"required"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (c *CommandController) IssueCommand(ctx *gin.Context) {
	var req IssueCommandRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID, err := middleware.GetOwnerFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cmd, err := c.commandService.Issue(ctx, ownerID, req.DeviceID, req.Command, req.Parameters)
	if err != nil {
		switch {
		case errors.Is(err, agtmodels.ErrUnknownDevice):
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, agtmodels.ErrInvalidPayload):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusCreated, cmd)
}

// PollCommand is the device-facing poll. A device with no issued command
// receives the none sentinel instead of an error.
func (c *CommandController) PollCommand(ctx *gin.Context) {
	deviceID := ctx.Query("device_id")
	if deviceID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	cmd, err := c.commandService.Poll(ctx, deviceID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cmd == nil {
		ctx.JSON(http.StatusOK, gin.H{"action": commands.VerbNone})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"action":     cmd.Command,
		"command_id": cmd.ID,
		"parameters": cmd.Parameters,
		"status":     cmd.Status,
	})
}

type ReportOutcomeRequest struct {
	Status   string                 `json:"status" binding:"required"`
	Response map[string]interface{} `json:"response"`
}

func (c *CommandController) ReportOutcome(ctx *gin.Context) {
	commandID, err := strconv.ParseInt(ctx.Param("command_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid command_id"})
		return
	}

	var req ReportOutcomeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := agtmodels.CommandStatus(req.Status)
	if !status.Terminal() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "status must be executed or failed"})
		return
	}

	cmd, err := c.commandService.ReportOutcome(ctx, commandID, status, req.Response)
	if err != nil {
		if err == sql.ErrNoRows {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, cmd)
}

func (c *CommandController) CommandHistory(ctx *gin.Context) {
	deviceID := ctx.Query("device_id")
	if deviceID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	history, err := c.commandService.History(ctx, deviceID, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"commands": history, "count": len(history)})
}
