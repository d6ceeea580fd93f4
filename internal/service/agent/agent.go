/**
 * Agent 命令循环
 * @author: sun977
 * @date: 2026.10.14
 * @description: 拉取最近一条命令，先确认 Received，再执行并上报 Terminated/Failed
 * @func: Agent, New, Bootstrap, Run, Step
 */
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/executor/base"
	errs "github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/pkg/clock"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/monitor"
)

// ==================== 依赖 ====================

// ControlAPI Agent 用到的控制端接口
type ControlAPI interface {
	RegisterDevice(ctx context.Context, req *client.RegisterDeviceRequest) (*client.RegisterDeviceResponse, error)
	FetchRecentCommand(ctx context.Context, deviceID string) (*client.Command, error)
	UpdateCommandStatus(ctx context.Context, commandID string, status client.CommandStatus) error
}

// AppStore 应用状态存储，由 Launcher 写入，Agent 只回写 device_id
type AppStore interface {
	Load(v any) (bool, error)
	Put(key string, v any) error
}

// Dependencies 外部依赖
type Dependencies struct {
	API      ControlAPI
	Store    AppStore
	Executor base.Executor
	Identity func() (*config.Identity, error) // 为空时读取环境变量
	Hostname func(ctx context.Context) string // 为空时使用 monitor.Hostname
	Sleeper  clock.Sleeper
}

// Agent 命令循环
type Agent struct {
	api      ControlAPI
	store    AppStore
	executor base.Executor
	identity func() (*config.Identity, error)
	hostname func(ctx context.Context) string
	sleeper  clock.Sleeper
	cfg      *config.AgentConfig

	userID         string
	secret         string
	deviceID       string
	pendingPersist bool
}

// New 创建 Agent
func New(cfg *config.AgentConfig, deps Dependencies) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("agent config is required")
	}
	if deps.API == nil || deps.Store == nil || deps.Executor == nil {
		return nil, errors.New("api, store and executor are required")
	}
	a := &Agent{
		api:      deps.API,
		store:    deps.Store,
		executor: deps.Executor,
		identity: deps.Identity,
		hostname: deps.Hostname,
		sleeper:  deps.Sleeper,
		cfg:      cfg,
	}
	if a.identity == nil {
		a.identity = config.LoadIdentity
	}
	if a.hostname == nil {
		a.hostname = monitor.Hostname
	}
	if a.sleeper == nil {
		a.sleeper = clock.Real()
	}
	return a, nil
}

// DeviceID 引导完成后的设备ID
func (a *Agent) DeviceID() string {
	return a.deviceID
}

// ==================== 主循环 ====================

// Run 引导身份后无限轮询，直到 ctx 取消
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Bootstrap(ctx); err != nil {
		return err
	}
	logger.LogSystemEvent("agent", "loop_start", "command loop started", logger.InfoLevel,
		map[string]interface{}{"device_id": a.deviceID})

	for {
		delay := a.Step(ctx)
		if err := a.sleeper.Sleep(ctx, delay); err != nil {
			logger.LogSystemEvent("agent", "loop_stop", "command loop stopped", logger.InfoLevel, nil)
			return err
		}
	}
}

// Step 处理至多一条命令，返回下一轮前的等待时长
func (a *Agent) Step(ctx context.Context) time.Duration {
	cmd, err := a.api.FetchRecentCommand(ctx, a.deviceID)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			logger.Debugf("no command available for device %s", a.deviceID)
			return a.cfg.MediumSleep
		}
		logger.WithComponent("agent").WithError(err).
			WithField("kind", errs.KindOf(err)).
			Warnf("fetch command failed, retrying in %s", a.cfg.LongSleep)
		return a.cfg.LongSleep
	}
	// 没有ID的命令无法确认和上报，按没有命令处理
	if cmd == nil || cmd.ID == "" {
		logger.WithComponent("agent").Warn("control server returned a command without id, ignored")
		return a.cfg.MediumSleep
	}

	// 执行前确认收到，确认失败本轮放弃，不在本地重试
	if err := a.api.UpdateCommandStatus(ctx, cmd.ID, client.StatusReceived); err != nil {
		logger.WithComponent("agent").WithError(err).WithField("command_id", cmd.ID).
			Warn("acknowledge failed, abandoning command for this iteration")
		return a.cfg.ShortSleep
	}
	logger.LogCommandOperation(cmd.ID, string(cmd.Name), string(client.StatusReceived), "command acknowledged", 0, nil)

	start := time.Now()
	result := a.executor.Execute(ctx, cmd)
	elapsed := time.Since(start)

	switch result.Kind {
	case base.ResultSuccess:
		a.report(ctx, cmd, client.StatusTerminated, fmt.Sprintf("%d bytes of output", len(result.Output)), elapsed)
	case base.ResultFailure:
		a.report(ctx, cmd, client.StatusFailed, tagged(cmd.ID, result.Err).Error(), elapsed)
	case base.ResultUnhandled:
		if strings.EqualFold(a.cfg.UnhandledPolicy, config.UnhandledIgnore) {
			logger.LogCommandOperation(cmd.ID, string(cmd.Name), "ignored", "no handler for command, status left unchanged", elapsed, nil)
			break
		}
		a.report(ctx, cmd, client.StatusFailed, fmt.Sprintf("no handler for command %q", result.Tag), elapsed)
	}
	return a.cfg.ShortSleep
}

// report 上报最终状态，失败只记录日志
func (a *Agent) report(ctx context.Context, cmd *client.Command, status client.CommandStatus, message string, elapsed time.Duration) {
	if err := a.api.UpdateCommandStatus(ctx, cmd.ID, status); err != nil {
		logger.WithComponent("agent").WithError(err).
			WithFields(map[string]interface{}{"command_id": cmd.ID, "status": status}).
			Error("status report failed")
		return
	}
	logger.LogCommandOperation(cmd.ID, string(cmd.Name), string(status), message, elapsed, nil)
}

// tagged 保证失败错误带有命令ID
func tagged(commandID string, err error) error {
	if err == nil {
		return errs.NewCommandError(errs.UnknownError, commandID, "command failed", nil)
	}
	if errs.CommandIDOf(err) != "" {
		return err
	}
	return errs.NewCommandError(errs.KindOf(err), commandID, "", err)
}
