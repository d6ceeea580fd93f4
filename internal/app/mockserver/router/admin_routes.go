package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pma-it-suite/daemon/internal/app/mockserver/registry"
	"github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
)

// EnqueueCommandRequest POST /admin/commands 请求
type EnqueueCommandRequest struct {
	DeviceID string             `json:"device_id" binding:"required"`
	Name     client.CommandName `json:"name" binding:"required"`
	Args     *string            `json:"args"`
}

// setupAdminRoutes 联调用的管理接口：下发命令、发布版本
func (r *Router) setupAdminRoutes() {
	admin := r.engine.Group("/admin")
	admin.GET("/devices", r.handleListDevices)
	admin.GET("/commands", r.handleListCommands)
	admin.POST("/commands", r.handleEnqueueCommand)
	admin.PUT("/semver", r.handlePublishVersion)
}

func (r *Router) handleListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": r.registry.Devices()})
}

func (r *Router) handleListCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": r.registry.Commands()})
}

func (r *Router) handleEnqueueCommand(c *gin.Context) {
	var req EnqueueCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, base.MessageResponse{Message: "invalid request body", Error: err.Error()})
		return
	}
	cmd, err := r.registry.Enqueue(req.DeviceID, req.Name, req.Args)
	if errors.Is(err, registry.ErrUnknownDevice) {
		c.JSON(http.StatusNotFound, base.MessageResponse{Message: "unknown device"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, base.MessageResponse{Message: "enqueue failed", Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"command": cmd})
}

func (r *Router) handlePublishVersion(c *gin.Context) {
	var v client.SemanticVersion
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, base.MessageResponse{Message: "invalid version", Error: err.Error()})
		return
	}
	r.registry.SetVersion(v)
	c.JSON(http.StatusOK, v)
}
