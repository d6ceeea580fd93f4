/**
 * 模拟控制端应用程序
 * @author: sun977
 * @date: 2026.10.14
 * @description: 本地联调用的 HTTP 控制端，实现设备侧用到的全部接口
 */

package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pma-it-suite/daemon/internal/app/mockserver/registry"
	"github.com/pma-it-suite/daemon/internal/app/setup"
	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// App 模拟控制端应用
type App struct {
	config     *config.Config
	logger     *logger.LoggerManager
	registry   *registry.Registry
	httpServer *http.Server
}

// NewApp 创建模拟控制端，listen 非空时覆盖配置的监听地址
func NewApp(configPath, listen string) (*App, error) {
	cfg, err := setup.SetupConfig(configPath)
	if err != nil {
		return nil, err
	}
	if listen != "" {
		cfg.MockServer.Listen = listen
	}
	lm, err := setup.SetupLogger(cfg)
	if err != nil {
		return nil, err
	}
	serverModule, err := setup.SetupServer(cfg)
	if err != nil {
		return nil, err
	}
	return &App{
		config:     cfg,
		logger:     lm,
		registry:   serverModule.Registry,
		httpServer: serverModule.HTTPServer,
	}, nil
}

// Registry 内存状态
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Serve 监听并服务，直到 ctx 取消后优雅关闭
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.httpServer.Addr, err)
	}
	logger.Infof("mock control server listening on %s, release %s", ln.Addr(), a.registry.Version())

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	logger.Infof("mock control server stopped")
	return nil
}

// Close 释放资源
func (a *App) Close() error {
	return a.logger.Close()
}
