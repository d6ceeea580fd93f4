package launcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/model/state"
	"github.com/pma-it-suite/daemon/internal/pkg/clock"
	"github.com/pma-it-suite/daemon/internal/pkg/localstore"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
	"github.com/pma-it-suite/daemon/internal/pkg/servicectl"
)

// ==================== 测试替身 ====================

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) count(e string) int {
	n := 0
	for _, got := range l.all() {
		if got == e {
			n++
		}
	}
	return n
}

func (l *eventLog) index(e string) int {
	for i, got := range l.all() {
		if got == e {
			return i
		}
	}
	return -1
}

type fakeAPI struct {
	log         *eventLog
	pingErr     error
	versionErr  error
	downloadErr error
	version     client.SemanticVersion
	payload     []byte
}

func (f *fakeAPI) Ping(context.Context) error {
	f.log.add("ping")
	return f.pingErr
}

func (f *fakeAPI) FetchVersion(context.Context) (client.SemanticVersion, error) {
	f.log.add("semver")
	return f.version, f.versionErr
}

func (f *fakeAPI) DownloadBinary(context.Context) (io.ReadCloser, error) {
	f.log.add("download")
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

type fakeServices struct {
	log      *eventLog
	stopErr  error
	startErr error
	spec     *servicectl.ServiceSpec
}

func (f *fakeServices) Install(_ context.Context, spec *servicectl.ServiceSpec) error {
	f.log.add("install")
	f.spec = spec
	return nil
}

func (f *fakeServices) Uninstall(context.Context, string) error {
	f.log.add("uninstall")
	return errors.New("not registered")
}

func (f *fakeServices) Start(context.Context, string) error {
	f.log.add("start")
	return f.startErr
}

func (f *fakeServices) Stop(context.Context, string) error {
	f.log.add("stop")
	return f.stopErr
}

func (f *fakeServices) Status(context.Context, string) (string, error) {
	return "active", nil
}

type harness struct {
	log      *eventLog
	api      *fakeAPI
	services *fakeServices
	cfg      *config.LauncherConfig
	store    *localstore.Store
	sup      *Supervisor
	identity IdentityFunc
	control  *config.ControlConfig
}

func newHarness(t *testing.T, upstream client.SemanticVersion) *harness {
	t.Helper()
	dir := t.TempDir()
	log := &eventLog{}
	h := &harness{
		log:      log,
		api:      &fakeAPI{log: log, version: upstream, payload: []byte("#!/bin/sh\necho agent\n")},
		services: &fakeServices{log: log},
		cfg: &config.LauncherConfig{
			StateDir:       filepath.Join(dir, "state"),
			InstallPath:    filepath.Join(dir, "install"),
			BinName:        "pma-agent",
			Version:        "0.1.0",
			ErrorBackoff:   60 * time.Second,
			UpToDateSleep:  24 * time.Hour,
			ReconcileDelay: 0,
		},
		identity: func() (*config.Identity, error) {
			return &config.Identity{UserID: "user-1", UserSecret: "secret-1"}, nil
		},
		control: &config.ControlConfig{BaseURL: "https://control.pma.test:8443"},
	}
	h.store = localstore.New(filepath.Join(h.cfg.StateDir, LauncherStateFile))
	return h
}

func (h *harness) build(t *testing.T, sleeper clock.Sleeper) *Supervisor {
	t.Helper()
	sup, err := New(h.cfg, &config.ServiceConfig{Label: "com.pma.test"}, Dependencies{
		API:           h.api,
		LauncherStore: h.store,
		Services:      h.services,
		Identity:      h.identity,
		Sleeper:       sleeper,
		Control:       h.control,
	})
	require.NoError(t, err)
	h.sup = sup
	return sup
}

func (h *harness) launcherState(t *testing.T) state.LauncherConfig {
	t.Helper()
	var lc state.LauncherConfig
	found, err := h.store.Load(&lc)
	require.NoError(t, err)
	require.True(t, found)
	return lc
}

func (h *harness) appState(t *testing.T) (state.AppConfig, bool) {
	t.Helper()
	var app state.AppConfig
	found, err := localstore.New(AppStorePath(h.cfg.InstallPath)).Load(&app)
	require.NoError(t, err)
	return app, found
}

// seedInstalled 模拟已安装的版本
func (h *harness) seedInstalled(t *testing.T, v client.SemanticVersion, deviceID string) {
	t.Helper()
	require.NoError(t, h.store.Save(&state.LauncherConfig{
		BinName:             h.cfg.BinName,
		AppInstallPath:      h.cfg.InstallPath,
		AppVersion:          v,
		UserID:              "user-1",
		UserSecret:          "secret-1",
		HasAppBeenInstalled: true,
	}))
	require.NoError(t, localstore.New(AppStorePath(h.cfg.InstallPath)).Save(&state.AppConfig{
		AppInstallPath: h.cfg.InstallPath,
		BinName:        h.cfg.BinName,
		Version:        v,
		UserID:         "user-1",
		UserSecret:     "secret-1",
		DeviceID:       deviceID,
	}))
	require.NoError(t, os.WriteFile(filepath.Join(h.cfg.InstallPath, h.cfg.BinName), []byte("old"), 0o755))
}

func cancelAfter(n int, cancel context.CancelFunc) *clock.Fake {
	return clock.NewFake(func(i int, _ time.Duration) {
		if i >= n {
			cancel()
		}
	})
}

var v100 = client.SemanticVersion{Major: 1}

// ==================== 对账 ====================

func TestFreshInstall(t *testing.T) {
	h := newHarness(t, v100)
	sup := h.build(t, nil)

	outcome, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, outcome)

	app, found := h.appState(t)
	require.True(t, found)
	assert.Equal(t, v100, app.Version)
	assert.Equal(t, "user-1", app.UserID)
	assert.Equal(t, "secret-1", app.UserSecret)
	assert.Len(t, app.BinaryDigest, 64)

	lc := h.launcherState(t)
	assert.True(t, lc.HasAppBeenInstalled)
	assert.Equal(t, v100, lc.AppVersion)
	assert.Equal(t, client.SemanticVersion{Minor: 1}, lc.LauncherVersion)

	assert.Equal(t, 1, h.log.count("install"))
	assert.Equal(t, 1, h.log.count("start"))
	assert.Less(t, h.log.index("uninstall"), h.log.index("download"))

	bin := filepath.Join(h.cfg.InstallPath, h.cfg.BinName)
	data, err := os.ReadFile(bin)
	require.NoError(t, err)
	assert.Equal(t, h.api.payload, data)
	info, err := os.Stat(bin)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.NotNil(t, h.services.spec)
	assert.Equal(t, bin, h.services.spec.Program)
	assert.Equal(t, h.cfg.InstallPath, h.services.spec.WorkingDir)
	assert.Equal(t, "com.pma.test", h.services.spec.Label)
	assert.Equal(t, []string{"run"}, h.services.spec.Args)
	assert.Equal(t, map[string]string{
		"FLEET_CONTROL_BASE_URL":   "https://control.pma.test:8443",
		"FLEET_AGENT_INSTALL_PATH": h.cfg.InstallPath,
	}, h.services.spec.Env)
}

func TestFreshInstallPassesTLSSetting(t *testing.T) {
	h := newHarness(t, v100)
	h.control.SkipTLSVerify = true
	sup := h.build(t, nil)

	_, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h.services.spec)
	assert.Equal(t, "true", h.services.spec.Env["FLEET_CONTROL_SKIP_TLS_VERIFY"])
}

func TestFreshInstallWithoutControlConfig(t *testing.T) {
	h := newHarness(t, v100)
	h.control = nil
	sup := h.build(t, nil)

	_, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h.services.spec)
	assert.Equal(t, map[string]string{"FLEET_AGENT_INSTALL_PATH": h.cfg.InstallPath}, h.services.spec.Env)
}

func TestFreshInstallLogsIgnoredStepsAsWarn(t *testing.T) {
	var buf bytes.Buffer
	lm, err := logger.NewLogger(&config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	prev := logger.LoggerInstance
	logger.LoggerInstance = lm
	t.Cleanup(func() { logger.LoggerInstance = prev })

	h := newHarness(t, v100)
	h.services.stopErr = errors.New("not loaded")
	sup := h.build(t, nil)
	_, err = sup.Reconcile(context.Background())
	require.NoError(t, err)

	steps := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.NotEqual(t, "error", entry["level"], line)
		if step, ok := entry["step"].(string); ok {
			steps[step], _ = entry["level"].(string)
		}
	}
	assert.Equal(t, "warning", steps["stop_service"])
	assert.Equal(t, "warning", steps["uninstall_service"])
}

func TestUpToDateNoop(t *testing.T) {
	h := newHarness(t, v100)
	h.seedInstalled(t, v100, "")
	sup := h.build(t, nil)

	outcome, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpToDate, outcome)
	assert.Zero(t, h.log.count("download"))
	assert.Zero(t, h.log.count("install"))
	assert.Zero(t, h.log.count("stop"))
}

func TestUpToDateTakesLongSleep(t *testing.T) {
	h := newHarness(t, v100)
	h.seedInstalled(t, v100, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := cancelAfter(1, cancel)
	sup := h.build(t, sleeper)

	err := sup.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{24 * time.Hour}, sleeper.Sleeps())
}

func TestNewerInstalledVersionIsNotDowngraded(t *testing.T) {
	h := newHarness(t, v100)
	h.seedInstalled(t, client.SemanticVersion{Major: 2}, "")
	sup := h.build(t, nil)

	outcome, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpToDate, outcome)
	assert.Zero(t, h.log.count("download"))
}

func TestInPlaceUpdateOrdering(t *testing.T) {
	v110 := client.SemanticVersion{Major: 1, Minor: 1}
	h := newHarness(t, v110)
	h.seedInstalled(t, v100, "device-9")
	h.services.stopErr = errors.New("already stopped")
	sup := h.build(t, nil)

	outcome, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	stop, download, start := h.log.index("stop"), h.log.index("download"), h.log.index("start")
	require.NotEqual(t, -1, stop)
	assert.Less(t, stop, download)
	assert.Less(t, download, start)
	assert.Zero(t, h.log.count("install"))
	assert.Zero(t, h.log.count("uninstall"))

	app, _ := h.appState(t)
	assert.Equal(t, v110, app.Version)
	assert.Equal(t, "device-9", app.DeviceID)
	assert.Equal(t, v110, h.launcherState(t).AppVersion)

	data, err := os.ReadFile(filepath.Join(h.cfg.InstallPath, h.cfg.BinName))
	require.NoError(t, err)
	assert.Equal(t, h.api.payload, data)
}

func TestIdempotentRerun(t *testing.T) {
	h := newHarness(t, v100)
	sup := h.build(t, nil)

	_, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	outcome, err := sup.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpToDate, outcome)
	assert.Equal(t, 1, h.log.count("download"))
	assert.Equal(t, 1, h.log.count("install"))
}

func TestRunReverifiesImmediatelyAfterInstall(t *testing.T) {
	h := newHarness(t, v100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := cancelAfter(2, cancel)
	sup := h.build(t, sleeper)

	require.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{0, 24 * time.Hour}, sleeper.Sleeps())
	assert.Equal(t, 1, h.log.count("install"))
}

func TestAppStateAbsentOverridesFlag(t *testing.T) {
	h := newHarness(t, v100)
	h.seedInstalled(t, v100, "")
	require.NoError(t, os.Remove(AppStorePath(h.cfg.InstallPath)))
	sup := h.build(t, nil)

	outcome, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, outcome)
	assert.Equal(t, 1, h.log.count("install"))
}

func TestFreshInstallKeepsDeviceID(t *testing.T) {
	h := newHarness(t, v100)
	h.seedInstalled(t, v100, "device-7")
	lc := h.launcherState(t)
	lc.HasAppBeenInstalled = false
	require.NoError(t, h.store.Save(&lc))
	sup := h.build(t, nil)

	outcome, err := sup.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, outcome)
	app, _ := h.appState(t)
	assert.Equal(t, "device-7", app.DeviceID)
}

// ==================== 失败路径 ====================

func TestPingFailureBacksOff(t *testing.T) {
	h := newHarness(t, v100)
	h.api.pingErr = base.NewError(base.NetworkError, "dial", errors.New("refused"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := cancelAfter(2, cancel)
	sup := h.build(t, sleeper)

	require.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, sleeper.Sleeps())
	assert.Zero(t, h.log.count("semver"))
}

func TestVersionFailureAborts(t *testing.T) {
	h := newHarness(t, v100)
	h.api.versionErr = base.NewError(base.SerializationError, "decode", nil)
	sup := h.build(t, nil)

	_, err := sup.Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, base.SerializationError, base.KindOf(err))
	assert.Zero(t, h.log.count("download"))
}

func TestMissingIdentityFailsClosed(t *testing.T) {
	h := newHarness(t, v100)
	h.identity = func() (*config.Identity, error) { return nil, client.ErrIdentityMissing }
	sup := h.build(t, nil)

	_, err := sup.Reconcile(context.Background())
	require.ErrorIs(t, err, client.ErrIdentityMissing)
	assert.Empty(t, h.log.all())

	var lc state.LauncherConfig
	found, err := h.store.Load(&lc)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDownloadFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, v100)
	h.api.downloadErr = base.NewError(base.ServerError, "GET /bintest", nil)
	sup := h.build(t, nil)

	_, err := sup.Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, base.ServerError, base.KindOf(err))

	_, found := h.appState(t)
	assert.False(t, found)
	lc := h.launcherState(t)
	assert.False(t, lc.HasAppBeenInstalled)
	assert.Zero(t, h.log.count("install"))
}

func TestLauncherStateIsBootstrappedOnce(t *testing.T) {
	h := newHarness(t, v100)
	h.api.pingErr = errors.New("down")
	calls := 0
	h.identity = func() (*config.Identity, error) {
		calls++
		return &config.Identity{UserID: "user-1", UserSecret: "secret-1"}, nil
	}
	sup := h.build(t, nil)

	_, err := sup.Reconcile(context.Background())
	require.Error(t, err)
	_, err = sup.Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	raw, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, h.cfg.InstallPath, doc["app_install_path"])
	assert.Equal(t, false, doc["has_app_been_installed"])
}

func TestNewRejectsBadLauncherVersion(t *testing.T) {
	h := newHarness(t, v100)
	h.cfg.Version = "one"
	_, err := New(h.cfg, &config.ServiceConfig{Label: "x"}, Dependencies{
		API: h.api, LauncherStore: h.store, Services: h.services,
	})
	assert.Error(t, err)
}

func TestState(t *testing.T) {
	h := newHarness(t, v100)
	sup := h.build(t, nil)

	lc, app, err := sup.State()
	require.NoError(t, err)
	assert.Nil(t, lc)
	assert.Nil(t, app)

	h.seedInstalled(t, v100, "device-1")
	lc, app, err = sup.State()
	require.NoError(t, err)
	require.NotNil(t, lc)
	require.NotNil(t, app)
	assert.Equal(t, "device-1", app.DeviceID)
}
