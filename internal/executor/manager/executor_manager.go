/**
 * 执行器管理器
 * @author: sun977
 * @date: 2026.10.14
 * @description: 按命令类型注册处理器并分发执行，未注册的类型返回 Unhandled
 * @func: ExecutorManager, NewExecutorManager, Register, Execute
 */
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/executor/base"
	"github.com/pma-it-suite/daemon/internal/executor/system"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
)

// ExecutorManager 执行器管理器
type ExecutorManager struct {
	handlers map[client.CommandName]base.Handler
	mu       sync.RWMutex
}

var _ base.Executor = (*ExecutorManager)(nil)

// NewExecutorManager 创建管理器并注册内置命令
// Update 不在 Agent 端处理，故不注册
func NewExecutorManager(cfg *config.ExecutorConfig) *ExecutorManager {
	if cfg == nil {
		cfg = &config.ExecutorConfig{}
	}
	m := &ExecutorManager{handlers: make(map[client.CommandName]base.Handler)}
	m.Register(client.CommandTest, base.HandlerFunc(system.HandleTest))
	m.Register(client.CommandHealth, base.HandlerFunc(system.HandleHealth))
	m.Register(client.CommandInfo, base.HandlerFunc(system.HandleInfo))
	m.Register(client.CommandShellCommand, system.NewShellExecutor(cfg.Shell, cfg.ShellTimeout, cfg.MaxOutputBytes))
	return m
}

// Register 注册或替换处理器
func (m *ExecutorManager) Register(name client.CommandName, h base.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = h
}

// Registered 是否存在对应处理器
func (m *ExecutorManager) Registered(name client.CommandName) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.handlers[name]
	return ok
}

// Execute 分发执行
func (m *ExecutorManager) Execute(ctx context.Context, cmd *client.Command) base.Result {
	m.mu.RLock()
	h, ok := m.handlers[cmd.Name]
	m.mu.RUnlock()
	if !ok {
		return base.Unhandled(cmd.Name)
	}

	start := time.Now()
	output, err := h.Handle(ctx, cmd)
	entry := logger.WithFields(map[string]interface{}{
		"command_id": cmd.ID,
		"name":       string(cmd.Name),
		"duration":   time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Debug("command handler returned error")
		return base.Failure(err)
	}
	entry.WithField("output_bytes", len(output)).Debug("command handler finished")
	return base.Success(output)
}
