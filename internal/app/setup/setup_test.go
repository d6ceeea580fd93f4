package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pma-it-suite/daemon/internal/service/launcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSetupConfigWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "fleet.env")
	require.NoError(t, os.WriteFile(envFile, []byte("FLEET_CONTROL_BASE_URL=http://10.0.0.9:5001\n"), 0o600))
	t.Setenv("FLEET_CONTROL_BASE_URL", "")
	os.Unsetenv("FLEET_CONTROL_BASE_URL")

	path := writeConfig(t, "app:\n  env_file: "+envFile+"\n")
	cfg, err := SetupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:5001", cfg.Control.BaseURL)
}

func TestSetupLauncherStores(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "launcher:\n  state_dir: "+filepath.Join(dir, "state")+"\n  install_path: "+filepath.Join(dir, "install")+"\n")
	cfg, err := SetupConfig(path)
	require.NoError(t, err)

	stores, err := SetupLauncherStores(cfg)
	require.NoError(t, err)
	assert.FileExists(t, stores.LauncherStore.Path())
	assert.Nil(t, stores.AppStore)
	assert.NoFileExists(t, launcher.AppStorePath(cfg.Launcher.InstallPath))
}

func TestSetupServer(t *testing.T) {
	path := writeConfig(t, "mock_server:\n  listen: 127.0.0.1:0\n  version: 1.4.2\n")
	cfg, err := SetupConfig(path)
	require.NoError(t, err)

	srv, err := SetupServer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", srv.Registry.Version().String())
	assert.Equal(t, "127.0.0.1:0", srv.HTTPServer.Addr)
	assert.NotEmpty(t, srv.Registry.Binary())

	cfg.MockServer.BinaryPath = filepath.Join(t.TempDir(), "missing")
	_, err = SetupServer(cfg)
	assert.Error(t, err)
}

func TestSetupClient(t *testing.T) {
	path := writeConfig(t, "control:\n  base_url: http://127.0.0.1:9999/\n")
	cfg, err := SetupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", SetupClient(cfg).API.BaseURL())
}

func TestSetupConfigWatcherDisabled(t *testing.T) {
	path := writeConfig(t, "app:\n  watch_config: false\n")
	cfg, err := SetupConfig(path)
	require.NoError(t, err)
	lm, err := SetupLogger(cfg)
	require.NoError(t, err)

	w, err := SetupConfigWatcher(cfg, lm)
	require.NoError(t, err)
	assert.Nil(t, w)
}
