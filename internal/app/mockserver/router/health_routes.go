package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/version"
)

// setupHealthRoutes 健康检查路由
func (r *Router) setupHealthRoutes() {
	r.engine.GET("/health", r.handleHealth)
	r.engine.GET("/version", r.handleVersion)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": logger.FormatTimestamp(time.Now()),
		"service":   "pma-mockserver",
	})
}

func (r *Router) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":         "pma-mockserver",
		"version":         version.GetVersion(),
		"go_version":      version.GoVersion,
		"release_version": r.registry.Version().String(),
	})
}
