package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pma-it-suite/daemon/internal/app/mockserver/registry"
	"github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	apiclient "github.com/pma-it-suite/daemon/internal/pkg/client"
)

// setupControlRoutes 设备侧调用的控制端接口
func (r *Router) setupControlRoutes() {
	r.engine.GET(apiclient.PathPing, r.handlePing)
	r.engine.GET(apiclient.PathSemver, r.handleSemver)
	r.engine.GET(r.config.DownloadPath, r.handleBinary)
	r.engine.POST(apiclient.PathRegister, r.handleRegister)
	r.engine.GET(apiclient.PathRecent, r.handleRecent)
	r.engine.PATCH(apiclient.PathUpdateStatus, r.handleUpdateStatus)
}

func (r *Router) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, client.PingResponse{Ok: true})
}

func (r *Router) handleSemver(c *gin.Context) {
	c.JSON(http.StatusOK, r.registry.Version())
}

func (r *Router) handleBinary(c *gin.Context) {
	bin := r.registry.Binary()
	if len(bin) == 0 {
		c.JSON(http.StatusNotFound, base.MessageResponse{Message: "no binary published"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", bin)
}

func (r *Router) handleRegister(c *gin.Context) {
	var req client.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, base.MessageResponse{Message: "invalid request body", Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.DeviceName) == "" || strings.TrimSpace(req.UserID) == "" || req.UserSecret == "" {
		c.JSON(http.StatusUnprocessableEntity, base.MessageResponse{Message: "device_name, user_id and user_secret are required"})
		return
	}
	d := r.registry.RegisterDevice(&req)
	c.JSON(http.StatusCreated, client.RegisterDeviceResponse{DeviceID: d.ID})
}

func (r *Router) handleRecent(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, base.MessageResponse{Message: "device_id parameter is required"})
		return
	}
	cmd, err := r.registry.Recent(deviceID)
	if errors.Is(err, registry.ErrNoCommand) {
		c.JSON(http.StatusNotFound, base.MessageResponse{Message: "no command available"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, base.MessageResponse{Message: "fetch command failed", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, client.FetchRecentCommandResponse{Command: *cmd})
}

func (r *Router) handleUpdateStatus(c *gin.Context) {
	var req client.UpdateCommandStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, base.MessageResponse{Message: "invalid request body", Error: err.Error()})
		return
	}
	if req.CommandID == "" || req.Status == "" {
		c.JSON(http.StatusUnprocessableEntity, base.MessageResponse{Message: "command_id and status are required"})
		return
	}
	if err := r.registry.UpdateStatus(req.CommandID, req.Status); err != nil {
		c.JSON(http.StatusNotFound, base.MessageResponse{Message: "unknown command", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, base.OkResponse{Ok: true})
}
