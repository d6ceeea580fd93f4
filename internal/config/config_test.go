package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pma-it-suite/daemon/internal/model/client"
)

// TestConfigLoaderFromFile 从指定文件加载配置
func TestConfigLoaderFromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: "debug"
  format: "json"
control:
  base_url: "http://control.local:5001"
  request_timeout: 5s
launcher:
  install_path: "/tmp/fleet-app"
  error_backoff: 2s
agent:
  medium_sleep: 3s
  unhandled_policy: "ignore"
executor:
  shell_timeout: 30s
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := NewConfigLoader(configFile, EnvPrefix).LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "http://control.local:5001", cfg.Control.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Control.RequestTimeout)
	assert.Equal(t, "/tmp/fleet-app", cfg.Launcher.InstallPath)
	assert.Equal(t, 2*time.Second, cfg.Launcher.ErrorBackoff)
	assert.Equal(t, 3*time.Second, cfg.Agent.MediumSleep)
	assert.Equal(t, UnhandledIgnore, cfg.Agent.UnhandledPolicy)
	assert.Equal(t, 30*time.Second, cfg.Executor.ShellTimeout)

	// 未配置的项使用默认值
	assert.Equal(t, time.Second, cfg.Agent.ShortSleep)
	assert.Equal(t, 10*time.Second, cfg.Agent.LongSleep)
	assert.Equal(t, 24*time.Hour, cfg.Launcher.UpToDateSleep)
	assert.Equal(t, "com.pma.daemon", cfg.Service.Label)
}

// TestConfigLoaderDefaultsWithoutFile 没有配置文件时使用默认值
func TestConfigLoaderDefaultsWithoutFile(t *testing.T) {
	cfg, err := NewConfigLoader(t.TempDir(), EnvPrefix).LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 60*time.Second, cfg.Launcher.ErrorBackoff)
	assert.Equal(t, 5*time.Second, cfg.Agent.MediumSleep)
	assert.Equal(t, UnhandledFail, cfg.Agent.UnhandledPolicy)
	assert.Equal(t, 1<<20, cfg.Executor.MaxOutputBytes)
}

// TestConfigLoaderEnvOverride 环境变量覆盖配置
func TestConfigLoaderEnvOverride(t *testing.T) {
	t.Setenv("FLEET_CONTROL_BASE_URL", "https://fleet.example.com")
	t.Setenv("FLEET_AGENT_LONG_SLEEP", "42s")
	t.Setenv("FLEET_INSTALL_PATH", "/srv/fleet")

	cfg, err := NewConfigLoader(t.TempDir(), EnvPrefix).LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://fleet.example.com", cfg.Control.BaseURL)
	assert.Equal(t, 42*time.Second, cfg.Agent.LongSleep)
	assert.Equal(t, "/srv/fleet", cfg.Launcher.InstallPath)
	assert.Equal(t, "/srv/fleet", cfg.Agent.InstallPath)
}

// TestConfigValidation 非法配置
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad url", "control:\n  base_url: \"not a url\"\n"},
		{"bad policy", "agent:\n  unhandled_policy: \"retry\"\n"},
		{"bad backend", "service:\n  backend: \"upstart\"\n"},
		{"zero timeout", "executor:\n  shell_timeout: 0s\n"},
		{"bin name with path", "launcher:\n  bin_name: \"../evil\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configFile, []byte(tt.content), 0o644))
			_, err := NewConfigLoader(configFile, EnvPrefix).LoadConfig()
			assert.Error(t, err)
		})
	}
}

// TestConfigLoaderMissingExplicitFile 显式指定的文件必须存在
func TestConfigLoaderMissingExplicitFile(t *testing.T) {
	_, err := NewConfigLoader(filepath.Join(t.TempDir(), "missing.yaml"), EnvPrefix).LoadConfig()
	assert.Error(t, err)
}

// TestLoadIdentity 身份只来自环境变量
func TestLoadIdentity(t *testing.T) {
	t.Setenv("FLEET_USER_ID", "user-1")
	t.Setenv("FLEET_USER_SECRET", "secret-1")

	id, err := LoadIdentity()
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "secret-1", id.UserSecret)
}

// TestLoadIdentityMissing 缺失身份时失败，不回退默认值
func TestLoadIdentityMissing(t *testing.T) {
	t.Setenv("FLEET_USER_ID", "user-1")
	t.Setenv("FLEET_USER_SECRET", "")
	os.Unsetenv("FLEET_USER_SECRET")

	_, err := LoadIdentity()
	assert.True(t, errors.Is(err, client.ErrIdentityMissing))

	t.Setenv("FLEET_USER_SECRET", "   ")
	_, err = LoadIdentity()
	assert.True(t, errors.Is(err, client.ErrIdentityMissing))
}

// TestEnvLoader .env 文件加载
func TestEnvLoader(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FLEET_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("FLEET_TEST_DOTENV") })

	loader := NewEnvLoader(envFile, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, loader.Load())
	assert.Equal(t, "loaded", os.Getenv("FLEET_TEST_DOTENV"))
	assert.Equal(t, []string{envFile}, loader.Loaded())
}

// TestDump YAML 输出
func TestDump(t *testing.T) {
	cfg, err := NewConfigLoader(t.TempDir(), EnvPrefix).LoadConfig()
	require.NoError(t, err)

	data, err := Dump(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "127.0.0.1:5001")
}

// TestConfigWatcherReload 修改配置文件后触发回调
func TestConfigWatcherReload(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0o644))

	cfg, err := NewConfigLoader(configFile, EnvPrefix).LoadConfig()
	require.NoError(t, err)

	watcher, err := NewConfigWatcher(configFile, cfg)
	require.NoError(t, err)
	watcher.reloadDelay = 50 * time.Millisecond

	changed := make(chan string, 1)
	watcher.AddCallback(func(oldConfig, newConfig *Config) error {
		select {
		case changed <- newConfig.Log.Level:
		default:
		}
		return nil
	})
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0o644))

	select {
	case level := <-changed:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change callback was not called")
	}
	assert.Eventually(t, func() bool {
		return watcher.GetConfig().Log.Level == "debug"
	}, 2*time.Second, 20*time.Millisecond)
}

// TestValidateConfigChange 运行期间安装目录不可变
func TestValidateConfigChange(t *testing.T) {
	oldCfg, err := NewConfigLoader(t.TempDir(), EnvPrefix).LoadConfig()
	require.NoError(t, err)
	newCfg, err := NewConfigLoader(t.TempDir(), EnvPrefix).LoadConfig()
	require.NoError(t, err)

	assert.NoError(t, ValidateConfigChange(oldCfg, newCfg))
	newCfg.Launcher.InstallPath = "/elsewhere"
	assert.Error(t, ValidateConfigChange(oldCfg, newCfg))
}
