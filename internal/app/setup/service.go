package setup

import (
	"fmt"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/pkg/servicectl"
)

// SetupService 按配置选择服务后端
func SetupService(cfg *config.Config) (*ServiceModule, error) {
	m, err := servicectl.New(servicectl.Options{
		Backend: cfg.Service.Backend,
		UnitDir: cfg.Service.UnitDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init service manager: %w", err)
	}
	return &ServiceModule{Manager: m, Label: cfg.Service.Label}, nil
}
