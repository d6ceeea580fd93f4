// 结构化日志
package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FormatTimestamp 格式化时间戳为统一的毫秒精度格式
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampFormat)
}

// LogType 日志类型
type LogType string

const (
	// AccessLog 访问日志 - 模拟控制端的HTTP请求
	AccessLog LogType = "access"
	// SystemLog 系统日志 - 组件启动、关闭、状态变化
	SystemLog LogType = "system"
	// CommandLog 命令日志 - 命令拉取、确认、执行、上报
	CommandLog LogType = "command"
	// LifecycleLog 生命周期日志 - 安装、升级、服务控制
	LifecycleLog LogType = "lifecycle"
)

// LogLevel 日志级别，避免业务层直接依赖logrus
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func withExtra(fields logrus.Fields, extraFields map[string]interface{}) logrus.Fields {
	for k, v := range extraFields {
		fields[k] = v
	}
	return fields
}

// LogSystemEvent 记录系统事件日志
func LogSystemEvent(component, event, message string, level LogLevel, extraFields map[string]interface{}) {
	fields := withExtra(logrus.Fields{
		"type":      SystemLog,
		"component": component,
		"event":     event,
	}, extraFields)

	entry().WithFields(fields).Log(toLogrusLevel(level), fmt.Sprintf("%s %s: %s", component, event, message))
}

// LogCommandOperation 记录命令处理日志
// status 为命令上报的状态，失败状态使用 error 级别
func LogCommandOperation(commandID, name, status, message string, duration time.Duration, extraFields map[string]interface{}) {
	fields := withExtra(logrus.Fields{
		"type":       CommandLog,
		"command_id": commandID,
		"name":       name,
		"status":     status,
	}, extraFields)
	if duration > 0 {
		fields["duration_ms"] = duration.Milliseconds()
	}

	e := entry().WithFields(fields)
	switch status {
	case "Failed":
		e.Errorf("Command %s (%s) failed: %s", commandID, name, message)
	case "Terminated":
		e.Infof("Command %s (%s) terminated: %s", commandID, name, message)
	default:
		e.Infof("Command %s (%s) %s: %s", commandID, name, status, message)
	}
}

// LogLifecycleStep 记录安装/升级过程中的一步
func LogLifecycleStep(operation, step string, err error, extraFields map[string]interface{}) {
	fields := withExtra(logrus.Fields{
		"type":      LifecycleLog,
		"operation": operation,
		"step":      step,
	}, extraFields)

	e := entry().WithFields(fields)
	if err != nil {
		e.WithError(err).Errorf("%s: %s failed", operation, step)
		return
	}
	e.Infof("%s: %s done", operation, step)
}

// LogAccessRequest 记录 gin 访问日志
func LogAccessRequest(c *gin.Context, startTime time.Time, requestID string) {
	status := c.Writer.Status()
	fields := logrus.Fields{
		"type":          AccessLog,
		"method":        c.Request.Method,
		"path":          c.Request.URL.Path,
		"query":         c.Request.URL.RawQuery,
		"status_code":   status,
		"response_time": time.Since(startTime).Milliseconds(),
		"client_ip":     c.ClientIP(),
		"request_id":    requestID,
		"response_size": c.Writer.Size(),
	}

	e := entry().WithFields(fields)
	msg := fmt.Sprintf("%s %s %d", c.Request.Method, c.Request.URL.Path, status)
	switch {
	case status >= 500:
		e.Error(msg)
	case status >= 400:
		e.Warn(msg)
	default:
		e.Info(msg)
	}
}
