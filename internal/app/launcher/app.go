/**
 * Launcher 应用程序核心逻辑
 * @author: sun977
 * @date: 2026.10.14
 * @description: 组装配置、日志、控制端客户端、本地状态与服务管理，驱动 Launcher 对账循环和一次性命令
 * @architecture: 与 Agent 相同，应用逻辑从 main 函数中分离
 */

package launcher

import (
	"context"
	"fmt"

	"github.com/pma-it-suite/daemon/internal/app/setup"
	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/model/state"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/version"
	launchersvc "github.com/pma-it-suite/daemon/internal/service/launcher"
)

// App Launcher 应用程序结构体
type App struct {
	config     *config.Config
	logger     *logger.LoggerManager
	supervisor *launchersvc.Supervisor
	control    *launchersvc.ServiceControl
	watcher    *config.ConfigWatcher
}

// StatusReport launcher status 输出
type StatusReport struct {
	LauncherVersion string                `yaml:"launcher_version"`
	Service         string                `yaml:"service"`
	ServiceState    string                `yaml:"service_state"`
	Launcher        *state.LauncherConfig `yaml:"launcher,omitempty"`
	App             *state.AppConfig      `yaml:"app,omitempty"`
}

// NewApp 创建 Launcher 应用程序实例
func NewApp(configPath string) (*App, error) {
	cfg, err := setup.SetupConfig(configPath)
	if err != nil {
		return nil, err
	}
	lm, err := setup.SetupLogger(cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("pma launcher %s initializing", version.GetVersion())

	clientModule := setup.SetupClient(cfg)
	storeModule, err := setup.SetupLauncherStores(cfg)
	if err != nil {
		return nil, err
	}
	serviceModule, err := setup.SetupService(cfg)
	if err != nil {
		return nil, err
	}

	sup, err := launchersvc.New(cfg.Launcher, cfg.Service, launchersvc.Dependencies{
		API:           clientModule.API,
		LauncherStore: storeModule.LauncherStore,
		Services:      serviceModule.Manager,
		Control:       cfg.Control,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init supervisor: %w", err)
	}

	return &App{
		config:     cfg,
		logger:     lm,
		supervisor: sup,
		control:    launchersvc.NewServiceControl(serviceModule.Manager, serviceModule.Label),
	}, nil
}

// GetConfig 获取配置实例
func (a *App) GetConfig() *config.Config {
	return a.config
}

// Run 进入对账循环，直到 ctx 取消
func (a *App) Run(ctx context.Context) error {
	w, err := setup.SetupConfigWatcher(a.config, a.logger)
	if err != nil {
		logger.WithError(err).Warn("config watcher disabled")
	}
	a.watcher = w

	logger.Infof("launcher managing %s at %s", a.config.Service.Label, a.config.Launcher.InstallPath)
	return a.supervisor.Run(ctx)
}

// Once 执行一次对账
func (a *App) Once(ctx context.Context) (launchersvc.Outcome, error) {
	return a.supervisor.Reconcile(ctx)
}

// Control 一次性服务控制
func (a *App) Control(ctx context.Context, action launchersvc.Action) error {
	return a.control.Do(ctx, action)
}

// Status 汇总已持久化状态与服务状态
func (a *App) Status(ctx context.Context) (*StatusReport, error) {
	lc, app, err := a.supervisor.State()
	if err != nil {
		return nil, err
	}
	report := &StatusReport{
		LauncherVersion: a.config.Launcher.Version,
		Service:         a.config.Service.Label,
		Launcher:        lc,
		App:             app,
	}
	if st, err := a.control.Status(ctx); err != nil {
		report.ServiceState = "unknown: " + err.Error()
	} else {
		report.ServiceState = st
	}
	return report, nil
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
