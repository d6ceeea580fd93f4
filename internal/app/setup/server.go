package setup

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pma-it-suite/daemon/internal/app/mockserver/middleware"
	"github.com/pma-it-suite/daemon/internal/app/mockserver/registry"
	"github.com/pma-it-suite/daemon/internal/app/mockserver/router"
	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/model/client"
)

// defaultBinary 未配置 binary_path 时发布的占位二进制
var defaultBinary = []byte("#!/bin/sh\necho pma mock agent\n")

// SetupServer 初始化模拟控制端
func SetupServer(cfg *config.Config) (*ServerModule, error) {
	ms := cfg.MockServer

	v, err := client.ParseSemanticVersion(ms.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid mock server version: %w", err)
	}
	bin := defaultBinary
	if ms.BinaryPath != "" {
		if bin, err = os.ReadFile(ms.BinaryPath); err != nil {
			return nil, fmt.Errorf("failed to read binary %s: %w", ms.BinaryPath, err)
		}
	}

	reg := registry.NewRegistry(v, bin)
	r := router.NewRouter(&router.RouterConfig{
		Debug:        cfg.App.Debug,
		DownloadPath: cfg.Control.DownloadPath,
		EnableAdmin:  true,
		Logging: &middleware.LoggingConfig{
			SkipPaths:            []string{"/health"},
			SlowRequestThreshold: 2 * time.Second,
		},
	}, reg)

	httpServer := &http.Server{
		Addr:              ms.Listen,
		Handler:           r.GetEngine(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &ServerModule{
		Registry:   reg,
		Router:     r,
		HTTPServer: httpServer,
	}, nil
}
