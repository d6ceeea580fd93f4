/**
 * 日志管理器
 * @author: sun977
 * @date: 2026.10.14
 * @description: 基于 logrus 的全局日志管理器，支持文件轮转与运行时更新
 */
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pma-it-suite/daemon/internal/config"
)

// 统一时间戳格式（毫秒精度）
const timestampFormat = "2006-01-02 15:04:05.000"

// LoggerManager 日志管理器
type LoggerManager struct {
	mu     sync.Mutex
	logger *logrus.Logger
	config *config.LogConfig
	closer io.Closer
}

// LoggerInstance 全局日志实例
var LoggerInstance *LoggerManager

// InitLogger 初始化全局日志管理器
func InitLogger(cfg *config.LogConfig) (*LoggerManager, error) {
	lm, err := NewLogger(cfg, nil)
	if err != nil {
		return nil, err
	}
	LoggerInstance = lm
	return lm, nil
}

// NewLogger 创建日志管理器
// out 不为空时忽略 cfg.Output，直接写入 out
func NewLogger(cfg *config.LogConfig, out io.Writer) (*LoggerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config cannot be nil")
	}

	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		// 解析失败时退回 info
		level = logrus.InfoLevel
		logger.Warnf("Invalid log level '%s', using 'info' as default", cfg.Level)
	}
	logger.SetLevel(level)

	if err := setLogFormatter(logger, cfg); err != nil {
		return nil, fmt.Errorf("failed to set log formatter: %w", err)
	}

	lm := &LoggerManager{logger: logger, config: cfg}
	if out != nil {
		logger.SetOutput(out)
	} else if err := lm.setLogOutput(cfg); err != nil {
		return nil, fmt.Errorf("failed to set log output: %w", err)
	}

	logger.SetReportCaller(cfg.Caller)
	return lm, nil
}

// setLogFormatter 设置日志格式化器
func setLogFormatter(logger *logrus.Logger, cfg *config.LogConfig) error {
	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
	return nil
}

// setLogOutput 设置日志输出目标，替换时关闭旧的轮转文件
func (lm *LoggerManager) setLogOutput(cfg *config.LogConfig) error {
	var (
		out    io.Writer
		closer io.Closer
	)

	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,    // MB
			MaxBackups: cfg.MaxBackups, // 保留的备份文件数
			MaxAge:     cfg.MaxAge,     // 保留天数
			Compress:   cfg.Compress,
		}
		closer = rotating
		out = rotating
		// debug 级别同时输出到控制台
		if strings.EqualFold(cfg.Level, "debug") {
			out = io.MultiWriter(os.Stdout, rotating)
		}
	default:
		return fmt.Errorf("unsupported log output: %s", cfg.Output)
	}

	lm.logger.SetOutput(out)
	if lm.closer != nil {
		lm.closer.Close()
	}
	lm.closer = closer
	return nil
}

// GetLogger 获取logrus实例
func (lm *LoggerManager) GetLogger() *logrus.Logger {
	return lm.logger
}

// GetConfig 获取日志配置
func (lm *LoggerManager) GetConfig() *config.LogConfig {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.config
}

// UpdateConfig 运行时更新日志配置
func (lm *LoggerManager) UpdateConfig(newCfg *config.LogConfig) error {
	if newCfg == nil {
		return fmt.Errorf("new config cannot be nil")
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	old := lm.config

	if newCfg.Level != old.Level {
		level, err := logrus.ParseLevel(newCfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		lm.logger.SetLevel(level)
		lm.logger.Infof("Log level updated from %s to %s", old.Level, newCfg.Level)
	}

	if newCfg.Format != old.Format {
		if err := setLogFormatter(lm.logger, newCfg); err != nil {
			return fmt.Errorf("failed to update log formatter: %w", err)
		}
		lm.logger.Infof("Log format updated from %s to %s", old.Format, newCfg.Format)
	}

	if newCfg.Output != old.Output || newCfg.FilePath != old.FilePath {
		if err := lm.setLogOutput(newCfg); err != nil {
			return fmt.Errorf("failed to update log output: %w", err)
		}
		lm.logger.Infof("Log output updated from %s to %s", old.Output, newCfg.Output)
	}

	if newCfg.Caller != old.Caller {
		lm.logger.SetReportCaller(newCfg.Caller)
	}

	lm.config = newCfg
	return nil
}

// Close 关闭日志文件
func (lm *LoggerManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.closer == nil {
		return nil
	}
	err := lm.closer.Close()
	lm.closer = nil
	return err
}

// entry 获取全局日志入口，未初始化时使用 logrus 标准实例
func entry() *logrus.Entry {
	if LoggerInstance != nil {
		return logrus.NewEntry(LoggerInstance.logger)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Debugf 记录格式化调试日志
func Debugf(format string, args ...interface{}) {
	entry().Debugf(format, args...)
}

// Infof 记录格式化信息日志
func Infof(format string, args ...interface{}) {
	entry().Infof(format, args...)
}

// Warnf 记录格式化警告日志
func Warnf(format string, args ...interface{}) {
	entry().Warnf(format, args...)
}

// Errorf 记录格式化错误日志
func Errorf(format string, args ...interface{}) {
	entry().Errorf(format, args...)
}

// WithField 添加单个字段
func WithField(key string, value interface{}) *logrus.Entry {
	return entry().WithField(key, value)
}

// WithFields 添加多个字段
func WithFields(fields logrus.Fields) *logrus.Entry {
	return entry().WithFields(fields)
}

// WithComponent 带组件名的日志入口
func WithComponent(component string) *logrus.Entry {
	return entry().WithField("component", component)
}

// WithError 带错误的日志入口
func WithError(err error) *logrus.Entry {
	return entry().WithError(err)
}
