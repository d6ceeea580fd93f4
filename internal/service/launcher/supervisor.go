/**
 * Launcher 服务
 * @author: sun977
 * @date: 2026.10.14
 * @description: 按控制端版本对账，保证应用二进制存在、为最新版本并作为系统服务运行
 * @func: Supervisor, New, Run, Reconcile
 */
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/model/state"
	"github.com/pma-it-suite/daemon/internal/pkg/clock"
	"github.com/pma-it-suite/daemon/internal/pkg/localstore"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/servicectl"
)

const (
	// LauncherStateFile Launcher 状态文件名，位于 state_dir
	LauncherStateFile = "launcher.json"
	// AppStateFile 应用状态文件名，位于安装目录
	AppStateFile = "app.json"
)

// Outcome 单次对账结果
type Outcome int

const (
	OutcomeUpToDate Outcome = iota
	OutcomeInstalled
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInstalled:
		return "installed"
	case OutcomeUpdated:
		return "updated"
	default:
		return "up_to_date"
	}
}

// ==================== 依赖 ====================

// ControlAPI Launcher 用到的控制端接口
type ControlAPI interface {
	Ping(ctx context.Context) error
	FetchVersion(ctx context.Context) (client.SemanticVersion, error)
	DownloadBinary(ctx context.Context) (io.ReadCloser, error)
}

// StateStore 单文档存储
type StateStore interface {
	Load(v any) (bool, error)
	Save(v any) error
}

// IdentityFunc 身份来源
type IdentityFunc func() (*config.Identity, error)

// Dependencies 外部依赖，测试中替换为假实现
type Dependencies struct {
	API           ControlAPI
	LauncherStore StateStore
	AppStore      func(installPath string) StateStore // 为空时按安装目录打开 localstore
	Services      servicectl.Manager
	Identity      IdentityFunc // 为空时读取环境变量
	Sleeper       clock.Sleeper
	Control       *config.ControlConfig // 写入应用服务环境，应用据此找到控制端
}

// Supervisor 版本对账循环
type Supervisor struct {
	api           ControlAPI
	launcherStore StateStore
	appStore      func(installPath string) StateStore
	services      servicectl.Manager
	identity      IdentityFunc
	sleeper       clock.Sleeper
	control       *config.ControlConfig

	cfg             *config.LauncherConfig
	label           string
	launcherVersion client.SemanticVersion
}

// New 创建 Supervisor
func New(cfg *config.LauncherConfig, svc *config.ServiceConfig, deps Dependencies) (*Supervisor, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("launcher and service config are required")
	}
	if deps.API == nil || deps.LauncherStore == nil || deps.Services == nil {
		return nil, errors.New("api, launcher store and service manager are required")
	}
	launcherVersion, err := client.ParseSemanticVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid launcher version: %w", err)
	}

	s := &Supervisor{
		api:             deps.API,
		launcherStore:   deps.LauncherStore,
		appStore:        deps.AppStore,
		services:        deps.Services,
		identity:        deps.Identity,
		sleeper:         deps.Sleeper,
		control:         deps.Control,
		cfg:             cfg,
		label:           svc.Label,
		launcherVersion: launcherVersion,
	}
	if s.appStore == nil {
		s.appStore = func(installPath string) StateStore {
			return localstore.New(AppStorePath(installPath))
		}
	}
	if s.identity == nil {
		s.identity = config.LoadIdentity
	}
	if s.sleeper == nil {
		s.sleeper = clock.Real()
	}
	return s, nil
}

// AppStorePath 应用状态文件路径
func AppStorePath(installPath string) string {
	return filepath.Join(installPath, AppStateFile)
}

// BinaryPath 应用二进制路径
func BinaryPath(lc *state.LauncherConfig) string {
	return filepath.Join(lc.AppInstallPath, lc.BinName)
}

// ==================== 主循环 ====================

// Run 无限对账，直到 ctx 取消
func (s *Supervisor) Run(ctx context.Context) error {
	logger.LogSystemEvent("launcher", "loop_start", "launcher reconciliation loop started", logger.InfoLevel,
		map[string]interface{}{"label": s.label, "launcher_version": s.launcherVersion.String()})

	for {
		outcome, err := s.Reconcile(ctx)
		delay := s.nextDelay(outcome, err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithComponent("launcher").WithError(err).Errorf("reconciliation failed, retrying in %s", delay)
		} else {
			logger.WithComponent("launcher").Infof("reconciliation finished: %s, next run in %s", outcome, delay)
		}

		if err := s.sleeper.Sleep(ctx, delay); err != nil {
			logger.LogSystemEvent("launcher", "loop_stop", "launcher reconciliation loop stopped", logger.InfoLevel, nil)
			return err
		}
	}
}

func (s *Supervisor) nextDelay(outcome Outcome, err error) time.Duration {
	if err != nil {
		return s.cfg.ErrorBackoff
	}
	if outcome == OutcomeUpToDate {
		return s.cfg.UpToDateSleep
	}
	return s.cfg.ReconcileDelay
}

// Reconcile 执行一次完整对账
// 任一步骤失败即中止，已持久化的内容保留，下一轮从头开始
func (s *Supervisor) Reconcile(ctx context.Context) (Outcome, error) {
	lc, err := s.loadOrBootstrap()
	if err != nil {
		return OutcomeUpToDate, err
	}

	if err := s.api.Ping(ctx); err != nil {
		return OutcomeUpToDate, fmt.Errorf("control server unhealthy: %w", err)
	}
	upstream, err := s.api.FetchVersion(ctx)
	if err != nil {
		return OutcomeUpToDate, fmt.Errorf("fetch upstream version: %w", err)
	}

	var app state.AppConfig
	installed, err := s.appStore(lc.AppInstallPath).Load(&app)
	if err != nil {
		return OutcomeUpToDate, fmt.Errorf("load app state: %w", err)
	}

	fields := map[string]interface{}{
		"upstream_version":  upstream.String(),
		"installed_version": app.Version.String(),
		"installed":         installed,
		"flag":              lc.HasAppBeenInstalled,
	}

	if !installed || !lc.HasAppBeenInstalled {
		logger.WithComponent("launcher").WithFields(fields).Info("app not installed, running fresh install")
		var previous *state.AppConfig
		if installed {
			previous = &app
		}
		if err := s.freshInstall(ctx, lc, upstream, previous); err != nil {
			return OutcomeUpToDate, err
		}
		return OutcomeInstalled, nil
	}

	if app.Version.Less(upstream) {
		logger.WithComponent("launcher").WithFields(fields).Info("upstream is newer, running in-place update")
		if err := s.inPlaceUpdate(ctx, lc, &app, upstream); err != nil {
			return OutcomeUpToDate, err
		}
		return OutcomeUpdated, nil
	}

	logger.WithComponent("launcher").WithFields(fields).Debug("app is up to date")
	return OutcomeUpToDate, nil
}

// loadOrBootstrap 读取 Launcher 状态，首次运行时按配置与环境身份创建并立即持久化
func (s *Supervisor) loadOrBootstrap() (*state.LauncherConfig, error) {
	var lc state.LauncherConfig
	found, err := s.launcherStore.Load(&lc)
	if err != nil {
		return nil, fmt.Errorf("load launcher state: %w", err)
	}
	if found {
		return &lc, nil
	}

	id, err := s.identity()
	if err != nil {
		return nil, fmt.Errorf("bootstrap launcher state: %w", err)
	}
	lc = state.LauncherConfig{
		BinName:         s.cfg.BinName,
		AppInstallPath:  s.cfg.InstallPath,
		LauncherVersion: s.launcherVersion,
		UserID:          id.UserID,
		UserSecret:      id.UserSecret,
	}
	if err := s.launcherStore.Save(&lc); err != nil {
		return nil, fmt.Errorf("persist launcher state: %w", err)
	}
	logger.LogLifecycleStep("bootstrap", "launcher_state_created", nil,
		map[string]interface{}{"install_path": lc.AppInstallPath, "bin_name": lc.BinName})
	return &lc, nil
}

// State 读取已持久化的 Launcher 与应用状态，不做初始化
func (s *Supervisor) State() (*state.LauncherConfig, *state.AppConfig, error) {
	var lc state.LauncherConfig
	found, err := s.launcherStore.Load(&lc)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}
	var app state.AppConfig
	installed, err := s.appStore(lc.AppInstallPath).Load(&app)
	if err != nil {
		return &lc, nil, err
	}
	if !installed {
		return &lc, nil, nil
	}
	return &lc, &app, nil
}
