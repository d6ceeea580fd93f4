package setup

import (
	"fmt"
	"path/filepath"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/pkg/localstore"
	"github.com/pma-it-suite/daemon/internal/service/launcher"
)

// SetupLauncherStores Launcher 状态存储在 state_dir 下
// 应用状态由 Supervisor 按持久化的安装目录打开，文件是否存在决定是否已安装，不能在这里创建
func SetupLauncherStores(cfg *config.Config) (*StoreModule, error) {
	ls, err := localstore.Open(filepath.Join(cfg.Launcher.StateDir, launcher.LauncherStateFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open launcher state: %w", err)
	}
	return &StoreModule{
		LauncherStore: ls,
	}, nil
}

// SetupAgentStore Agent 读取安装目录下的应用状态
func SetupAgentStore(cfg *config.Config) *StoreModule {
	return &StoreModule{
		AppStore: localstore.New(launcher.AppStorePath(cfg.Agent.InstallPath)),
	}
}
