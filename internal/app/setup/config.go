package setup

import (
	"fmt"

	"github.com/pma-it-suite/daemon/internal/config"
)

// SetupConfig 先加载 .env，再加载配置文件与 FLEET_ 环境变量
// app.env_file 指定的文件在配置加载后补充加载，然后重新读取一次配置
func SetupConfig(configPath string) (*config.Config, error) {
	if err := config.NewEnvLoader().Load(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.App.EnvFile == "" {
		return cfg, nil
	}

	env := config.NewEnvLoader(cfg.App.EnvFile)
	if err := env.Load(); err != nil {
		return nil, err
	}
	if len(env.Loaded()) == 0 {
		return cfg, nil
	}
	if cfg, err = config.LoadConfig(configPath); err != nil {
		return nil, fmt.Errorf("failed to reload config: %w", err)
	}
	return cfg, nil
}
