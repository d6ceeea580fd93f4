/**
 * 系统服务管理
 * @author: sun977
 * @date: 2026.10.14
 * @description: 以固定标识把应用注册为系统服务并控制其启停
 * @func: Manager 接口, New 按平台选择后端(systemd/launchd)
 */
package servicectl

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrUnsupported 当前平台没有可用的服务后端
var ErrUnsupported = errors.New("service management is not supported on this platform")

// ServiceSpec 服务定义
type ServiceSpec struct {
	Label       string            // 服务标识
	Description string            // 描述
	Program     string            // 可执行文件绝对路径
	Args        []string          // 启动参数
	WorkingDir  string            // 工作目录，即安装目录
	Env         map[string]string // 额外环境变量
}

// Validate 校验服务定义
func (s *ServiceSpec) Validate() error {
	if s.Label == "" {
		return fmt.Errorf("service label is required")
	}
	if s.Program == "" {
		return fmt.Errorf("service program is required")
	}
	if s.WorkingDir == "" {
		return fmt.Errorf("service working directory is required")
	}
	return nil
}

// Manager 服务管理器
type Manager interface {
	// Install 注册服务（不启动）
	Install(ctx context.Context, spec *ServiceSpec) error
	// Uninstall 移除服务注册
	Uninstall(ctx context.Context, label string) error
	// Start 启动服务
	Start(ctx context.Context, label string) error
	// Stop 停止服务
	Stop(ctx context.Context, label string) error
	// Status 服务当前状态
	Status(ctx context.Context, label string) (string, error)
}

// Options 后端参数
type Options struct {
	Backend string // auto/systemd/launchd
	UnitDir string // 为空时使用后端默认目录
}

// New 创建服务管理器
func New(opts Options) (Manager, error) {
	backend := strings.ToLower(opts.Backend)
	if backend == "" || backend == "auto" {
		switch runtime.GOOS {
		case "linux":
			backend = "systemd"
		case "darwin":
			backend = "launchd"
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, runtime.GOOS)
		}
	}

	switch backend {
	case "systemd":
		return NewSystemdManager(opts.UnitDir, nil), nil
	case "launchd":
		return NewLaunchdManager(opts.UnitDir, nil), nil
	default:
		return nil, fmt.Errorf("%w: backend %s", ErrUnsupported, backend)
	}
}
