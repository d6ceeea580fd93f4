package setup

import (
	"fmt"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
)

// SetupLogger 初始化全局日志
func SetupLogger(cfg *config.Config) (*logger.LoggerManager, error) {
	lm, err := logger.InitLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return lm, nil
}

// SetupConfigWatcher 开启 app.watch_config 时监听配置文件，变更后只热更新日志配置
// 未开启或没有配置文件时返回 nil
func SetupConfigWatcher(cfg *config.Config, lm *logger.LoggerManager) (*config.ConfigWatcher, error) {
	file := config.GetConfigFile()
	if !cfg.App.WatchConfig || file == "" {
		return nil, nil
	}

	w, err := config.NewConfigWatcher(file, cfg)
	if err != nil {
		return nil, err
	}
	w.OnError(func(err error) {
		logger.WithComponent("config").WithError(err).Warn("config reload failed")
	})
	w.AddCallback(config.ValidateConfigChange)
	w.AddCallback(func(_, newConfig *config.Config) error {
		return lm.UpdateConfig(newConfig.Log)
	})
	if err := w.Start(); err != nil {
		return nil, err
	}
	logger.Infof("watching config file %s", file)
	return w, nil
}
