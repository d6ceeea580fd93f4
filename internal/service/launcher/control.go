package launcher

import (
	"context"
	"fmt"

	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/servicectl"
)

// Action 一次性服务控制动作
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// ParseAction 解析命令行动作
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionStop, ActionRestart:
		return a, nil
	default:
		return "", fmt.Errorf("unknown service action %q", s)
	}
}

// ServiceControl 针对固定服务标识的一次性控制，不进入对账循环
type ServiceControl struct {
	services servicectl.Manager
	label    string
}

// NewServiceControl 创建服务控制
func NewServiceControl(services servicectl.Manager, label string) *ServiceControl {
	return &ServiceControl{services: services, label: label}
}

// Do 执行动作
// restart 先尽力停止，停止失败不影响启动
func (c *ServiceControl) Do(ctx context.Context, action Action) error {
	fields := map[string]interface{}{"label": c.label}
	switch action {
	case ActionStart:
		err := c.services.Start(ctx, c.label)
		logger.LogLifecycleStep("service_control", "start", err, fields)
		return err
	case ActionStop:
		err := c.services.Stop(ctx, c.label)
		logger.LogLifecycleStep("service_control", "stop", err, fields)
		return err
	case ActionRestart:
		if err := c.services.Stop(ctx, c.label); err != nil {
			logger.LogLifecycleStep("service_control", "stop_ignored", err, fields)
		}
		err := c.services.Start(ctx, c.label)
		logger.LogLifecycleStep("service_control", "restart", err, fields)
		return err
	default:
		return fmt.Errorf("unknown service action %q", action)
	}
}

// Status 服务当前状态
func (c *ServiceControl) Status(ctx context.Context) (string, error) {
	return c.services.Status(ctx, c.label)
}
