/**
 * 模拟控制端路由注册
 * @author: sun977
 * @date: 2026.10.14
 * @description: 统一注册模拟控制端的全部路由，供本地联调与测试使用
 * @func: Router, NewRouter, GetEngine
 */
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/pma-it-suite/daemon/internal/app/mockserver/middleware"
	"github.com/pma-it-suite/daemon/internal/app/mockserver/registry"
	apiclient "github.com/pma-it-suite/daemon/internal/pkg/client"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
)

// RouterConfig 路由配置
type RouterConfig struct {
	// 是否启用调试模式
	Debug bool `json:"debug"`

	// 二进制下载路径，与客户端 control.download_path 一致
	DownloadPath string `json:"download_path"`

	// 是否注册 /admin 管理路由
	EnableAdmin bool `json:"enable_admin"`

	// 日志中间件配置
	Logging *middleware.LoggingConfig `json:"logging"`
}

// Router 模拟控制端路由器
type Router struct {
	engine   *gin.Engine
	config   *RouterConfig
	registry *registry.Registry

	loggingMiddleware *middleware.LoggingMiddleware
}

// NewRouter 创建新的路由器
func NewRouter(config *RouterConfig, reg *registry.Registry) *Router {
	if config == nil {
		config = &RouterConfig{EnableAdmin: true}
	}
	if config.DownloadPath == "" {
		config.DownloadPath = apiclient.PathBinary
	}

	// 设置Gin模式
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:            gin.New(),
		config:            config,
		registry:          reg,
		loggingMiddleware: middleware.NewLoggingMiddleware(config.Logging),
	}
	r.registerRoutes()
	return r
}

// GetEngine 获取 gin 引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// registerRoutes 注册路由
func (r *Router) registerRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(r.loggingMiddleware.Handler())

	r.setupHealthRoutes()
	r.setupControlRoutes()
	if r.config.EnableAdmin {
		r.setupAdminRoutes()
	}
	logger.Debugf("mock control server routes registered, download path %s", r.config.DownloadPath)
}
