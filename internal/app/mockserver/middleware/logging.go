/**
 * 日志中间件
 * @author: sun977
 * @date: 2026.10.14
 * @description: 模拟控制端访问日志，透传或生成 X-Request-ID
 * @func: LoggingMiddleware, NewLoggingMiddleware, Handler
 */
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/utils"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// LoggingConfig 日志配置
type LoggingConfig struct {
	// 跳过日志的路径
	SkipPaths []string `json:"skip_paths"`

	// 慢请求阈值
	SlowRequestThreshold time.Duration `json:"slow_request_threshold"`
}

// LoggingMiddleware 日志中间件
type LoggingMiddleware struct {
	config *LoggingConfig
	skip   map[string]struct{}
}

// NewLoggingMiddleware 创建日志中间件
func NewLoggingMiddleware(config *LoggingConfig) *LoggingMiddleware {
	if config == nil {
		config = &LoggingConfig{
			SlowRequestThreshold: 2 * time.Second,
			SkipPaths:            []string{"/health"},
		}
	}
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}
	return &LoggingMiddleware{config: config, skip: skip}
}

// Handler 日志处理器
func (m *LoggingMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = utils.NewRequestID()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		if _, ok := m.skip[c.Request.URL.Path]; ok {
			return
		}
		logger.LogAccessRequest(c, startTime, requestID)

		if d := time.Since(startTime); m.config.SlowRequestThreshold > 0 && d > m.config.SlowRequestThreshold {
			logger.WithField("request_id", requestID).Warnf("slow request %s %s took %s", c.Request.Method, c.Request.URL.Path, d)
		}
	}
}
