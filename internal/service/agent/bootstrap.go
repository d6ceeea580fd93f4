package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/model/state"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
)

const deviceIDKey = "device_id"

// Bootstrap 确定 user_id/user_secret 与 device_id
// 每一步失败都按 bootstrap_retry 无限重试，只在 ctx 取消时返回
func (a *Agent) Bootstrap(ctx context.Context) error {
	if err := a.retry(ctx, "resolve_identity", a.resolveIdentity); err != nil {
		return err
	}
	return a.retry(ctx, "resolve_device", func(ctx context.Context) error {
		return a.resolveDevice(ctx)
	})
}

func (a *Agent) retry(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			logger.LogLifecycleStep("bootstrap", step, nil, nil)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.LogLifecycleStep("bootstrap", step, err, map[string]interface{}{"retry_in": a.cfg.BootstrapRetry.String()})
		if err := a.sleeper.Sleep(ctx, a.cfg.BootstrapRetry); err != nil {
			return err
		}
	}
}

// resolveIdentity 优先使用 Launcher 写入的应用状态，其次环境变量，不存在默认值
func (a *Agent) resolveIdentity(_ context.Context) error {
	var app state.AppConfig
	found, err := a.store.Load(&app)
	if err != nil {
		return fmt.Errorf("load app state: %w", err)
	}
	if found && app.HasIdentity() {
		a.userID, a.secret = app.UserID, app.UserSecret
		a.deviceID = strings.TrimSpace(app.DeviceID)
		return nil
	}

	id, err := a.identity()
	if err != nil {
		return err
	}
	a.userID, a.secret = id.UserID, id.UserSecret
	if found {
		a.deviceID = strings.TrimSpace(app.DeviceID)
	}
	return nil
}

// resolveDevice 复用已持久化的 device_id，否则注册并回写
// 注册成功但回写失败时保留内存中的ID，重试只做回写
func (a *Agent) resolveDevice(ctx context.Context) error {
	if a.deviceID == "" {
		name := strings.TrimSpace(a.cfg.DeviceName)
		if name == "" {
			name = a.hostname(ctx)
		}
		resp, err := a.api.RegisterDevice(ctx, &client.RegisterDeviceRequest{
			DeviceName: name,
			UserID:     a.userID,
			UserSecret: a.secret,
			IssuerID:   a.userID,
		})
		if err != nil {
			return fmt.Errorf("register device: %w", err)
		}
		a.deviceID = resp.DeviceID
		a.pendingPersist = true
		logger.WithComponent("agent").WithField("device_id", a.deviceID).Infof("device registered as %s", name)
	}

	if a.pendingPersist {
		if err := a.store.Put(deviceIDKey, a.deviceID); err != nil {
			return fmt.Errorf("persist device id: %w", err)
		}
		a.pendingPersist = false
	}
	return nil
}
