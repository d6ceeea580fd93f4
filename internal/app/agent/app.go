/**
 * Agent应用程序核心逻辑
 * @author: sun977
 * @date: 2026.10.14
 * @description: Agent应用的核心逻辑，负责初始化各种组件并驱动命令循环
 * @architecture: 应用逻辑从main函数中分离，各模块由 setup 统一初始化
 */

package agent

import (
	"context"
	"fmt"

	"github.com/pma-it-suite/daemon/internal/app/setup"
	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/executor/manager"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/version"
	agentsvc "github.com/pma-it-suite/daemon/internal/service/agent"
)

// App Agent应用程序结构体
type App struct {
	config   *config.Config
	logger   *logger.LoggerManager
	agent    *agentsvc.Agent
	executor *manager.ExecutorManager
	watcher  *config.ConfigWatcher
}

// NewApp 创建新的Agent应用程序实例
func NewApp(configPath string) (*App, error) {
	// 加载配置
	cfg, err := setup.SetupConfig(configPath)
	if err != nil {
		return nil, err
	}

	// 初始化日志管理器
	lm, err := setup.SetupLogger(cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("pma agent %s initializing", version.GetVersion())

	// 初始化各模块
	clientModule := setup.SetupClient(cfg)
	storeModule := setup.SetupAgentStore(cfg)
	executor := manager.NewExecutorManager(cfg.Executor)

	a, err := agentsvc.New(cfg.Agent, agentsvc.Dependencies{
		API:      clientModule.API,
		Store:    storeModule.AppStore,
		Executor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init agent: %w", err)
	}

	return &App{
		config:   cfg,
		logger:   lm,
		agent:    a,
		executor: executor,
	}, nil
}

// GetConfig 获取配置实例
func (a *App) GetConfig() *config.Config {
	return a.config
}

// Run 引导身份并进入命令循环，直到 ctx 取消
func (a *App) Run(ctx context.Context) error {
	w, err := setup.SetupConfigWatcher(a.config, a.logger)
	if err != nil {
		logger.WithError(err).Warn("config watcher disabled")
	}
	a.watcher = w

	logger.Infof("agent polling %s from %s", a.config.Control.BaseURL, a.config.Agent.InstallPath)
	return a.agent.Run(ctx)
}

// Close 释放资源
func (a *App) Close() error {
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	if a.logger != nil {
		return a.logger.Close()
	}
	return nil
}
