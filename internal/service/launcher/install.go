package launcher

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/model/state"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/servicectl"
	"github.com/pma-it-suite/daemon/internal/pkg/utils"
)

const binaryMode = 0o755

// 注入应用服务的环境变量，对应应用侧 FLEET_ 前缀配置
const (
	envControlBaseURL   = "FLEET_CONTROL_BASE_URL"
	envControlSkipTLS   = "FLEET_CONTROL_SKIP_TLS_VERIFY"
	envAgentInstallPath = "FLEET_AGENT_INSTALL_PATH"
)

// ==================== 全新安装 ====================

// freshInstall 全新安装
// previous 为仍存在的旧应用状态，用于保留 device_id
func (s *Supervisor) freshInstall(ctx context.Context, lc *state.LauncherConfig, upstream client.SemanticVersion, previous *state.AppConfig) error {
	const op = "fresh_install"

	// 清理崩溃残留的旧注册，失败忽略
	s.bestEffortStop(ctx, op)
	if err := s.services.Uninstall(ctx, s.label); err != nil {
		s.logIgnored(op, "uninstall_service", err)
	}

	if err := os.MkdirAll(lc.AppInstallPath, 0o755); err != nil {
		logger.LogLifecycleStep(op, "create_install_dir", err, nil)
		return base.NewError(base.IoError, "create install directory", err)
	}
	digest, err := s.installBinary(ctx, BinaryPath(lc))
	if err != nil {
		logger.LogLifecycleStep(op, "download_binary", err, nil)
		return err
	}
	logger.LogLifecycleStep(op, "download_binary", nil, map[string]interface{}{"digest": digest})

	app := &state.AppConfig{
		AppInstallPath: lc.AppInstallPath,
		BinName:        lc.BinName,
		Version:        upstream,
		UserID:         lc.UserID,
		UserSecret:     lc.UserSecret,
		BinaryDigest:   digest,
	}
	if previous != nil {
		app.DeviceID = previous.DeviceID
	}
	if err := s.appStore(lc.AppInstallPath).Save(app); err != nil {
		logger.LogLifecycleStep(op, "write_app_state", err, nil)
		return fmt.Errorf("write app state: %w", err)
	}

	lc.HasAppBeenInstalled = true
	lc.AppVersion = upstream
	if err := s.launcherStore.Save(lc); err != nil {
		logger.LogLifecycleStep(op, "write_launcher_state", err, nil)
		return fmt.Errorf("write launcher state: %w", err)
	}

	spec := &servicectl.ServiceSpec{
		Label:       s.label,
		Description: "pma managed device agent",
		Program:     BinaryPath(lc),
		Args:        []string{"run"},
		WorkingDir:  lc.AppInstallPath,
		Env:         s.serviceEnv(lc),
	}
	if err := s.services.Install(ctx, spec); err != nil {
		logger.LogLifecycleStep(op, "install_service", err, nil)
		return fmt.Errorf("install service: %w", err)
	}
	if err := s.services.Start(ctx, s.label); err != nil {
		logger.LogLifecycleStep(op, "start_service", err, nil)
		return fmt.Errorf("start service: %w", err)
	}
	logger.LogLifecycleStep(op, "complete", nil, map[string]interface{}{"version": upstream.String()})
	return nil
}

// ==================== 原地升级 ====================

// inPlaceUpdate 停服务，覆盖二进制，写版本，再启动，不重新注册服务
func (s *Supervisor) inPlaceUpdate(ctx context.Context, lc *state.LauncherConfig, app *state.AppConfig, upstream client.SemanticVersion) error {
	const op = "in_place_update"

	s.bestEffortStop(ctx, op)

	digest, err := s.installBinary(ctx, BinaryPath(lc))
	if err != nil {
		logger.LogLifecycleStep(op, "download_binary", err, nil)
		return err
	}

	from := app.Version
	app.Version = upstream
	app.BinaryDigest = digest
	if err := s.appStore(lc.AppInstallPath).Save(app); err != nil {
		logger.LogLifecycleStep(op, "write_app_state", err, nil)
		return fmt.Errorf("write app state: %w", err)
	}
	lc.AppVersion = upstream
	if err := s.launcherStore.Save(lc); err != nil {
		logger.LogLifecycleStep(op, "write_launcher_state", err, nil)
		return fmt.Errorf("write launcher state: %w", err)
	}

	if err := s.services.Start(ctx, s.label); err != nil {
		logger.LogLifecycleStep(op, "start_service", err, nil)
		return fmt.Errorf("start service: %w", err)
	}
	logger.LogLifecycleStep(op, "complete", nil, map[string]interface{}{
		"from": from.String(),
		"to":   upstream.String(),
	})
	return nil
}

func (s *Supervisor) bestEffortStop(ctx context.Context, op string) {
	if err := s.services.Stop(ctx, s.label); err != nil {
		s.logIgnored(op, "stop_service", err)
	}
}

// logIgnored 尽力而为的步骤失败属于预期情况，只记 warn
func (s *Supervisor) logIgnored(op, step string, err error) {
	logger.WithComponent("launcher").WithError(err).WithFields(map[string]interface{}{
		"type":      logger.LifecycleLog,
		"operation": op,
		"step":      step,
		"label":     s.label,
	}).Warnf("%s: %s failed, ignored", op, step)
}

// serviceEnv 应用服务的工作目录下没有配置文件，控制端地址和安装目录通过环境变量传入
func (s *Supervisor) serviceEnv(lc *state.LauncherConfig) map[string]string {
	env := map[string]string{envAgentInstallPath: lc.AppInstallPath}
	if s.control != nil {
		if s.control.BaseURL != "" {
			env[envControlBaseURL] = s.control.BaseURL
		}
		if s.control.SkipTLSVerify {
			env[envControlSkipTLS] = "true"
		}
	}
	return env
}

// installBinary 下载二进制并以截断方式写入目标路径，返回 BLAKE3 摘要
// 非原子写入，运行中的服务必须先停止
func (s *Supervisor) installBinary(ctx context.Context, path string) (string, error) {
	body, err := s.api.DownloadBinary(ctx)
	if err != nil {
		return "", fmt.Errorf("download binary: %w", err)
	}
	defer body.Close()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, binaryMode)
	if err != nil {
		return "", base.NewError(base.IoError, fmt.Sprintf("open %s", path), err)
	}
	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		// 网络中断也落在这里，按传输错误归类
		return "", base.NewError(base.NetworkError, fmt.Sprintf("write %s", path), err)
	}
	if err := f.Close(); err != nil {
		return "", base.NewError(base.IoError, fmt.Sprintf("close %s", path), err)
	}
	// 已存在文件时 OpenFile 不改权限
	if err := os.Chmod(path, binaryMode); err != nil {
		return "", base.NewError(base.IoError, fmt.Sprintf("chmod %s", path), err)
	}

	sum, err := utils.HashFile(path)
	if err != nil {
		return "", base.NewError(base.IoError, "hash binary", err)
	}
	logger.WithComponent("launcher").WithField("bytes", n).Debugf("binary written to %s", path)
	return utils.FormatDigest(sum), nil
}
