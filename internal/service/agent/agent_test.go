package agent

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pma-it-suite/daemon/internal/config"
	"github.com/pma-it-suite/daemon/internal/executor/base"
	"github.com/pma-it-suite/daemon/internal/executor/manager"
	errs "github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/model/state"
	"github.com/pma-it-suite/daemon/internal/pkg/clock"
	"github.com/pma-it-suite/daemon/internal/pkg/localstore"
)

// ==================== 测试替身 ====================

type statusUpdate struct {
	id     string
	status client.CommandStatus
}

type fakeAPI struct {
	mu          sync.Mutex
	command     *client.Command
	fetchErr    error
	ackErr      error
	reportErr   error
	registerErr error
	registered  []*client.RegisterDeviceRequest
	updates     []statusUpdate
	fetchedFor  []string
}

func (f *fakeAPI) RegisterDevice(_ context.Context, req *client.RegisterDeviceRequest) (*client.RegisterDeviceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &client.RegisterDeviceResponse{DeviceID: "device-new"}, nil
}

func (f *fakeAPI) FetchRecentCommand(_ context.Context, deviceID string) (*client.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchedFor = append(f.fetchedFor, deviceID)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.command == nil {
		return nil, errs.NewError(errs.NotFound, "GET /commands/recent returned 404", nil)
	}
	cmd := *f.command
	return &cmd, nil
}

func (f *fakeAPI) UpdateCommandStatus(_ context.Context, commandID string, status client.CommandStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{commandID, status})
	if status == client.StatusReceived {
		return f.ackErr
	}
	return f.reportErr
}

type recordingExecutor struct {
	inner base.Executor
	calls []string
}

func (r *recordingExecutor) Execute(ctx context.Context, cmd *client.Command) base.Result {
	r.calls = append(r.calls, cmd.ID)
	return r.inner.Execute(ctx, cmd)
}

type stubExecutor struct{ result base.Result }

func (s stubExecutor) Execute(context.Context, *client.Command) base.Result { return s.result }

func testConfig() *config.AgentConfig {
	return &config.AgentConfig{
		ShortSleep:      time.Second,
		MediumSleep:     5 * time.Second,
		LongSleep:       10 * time.Second,
		BootstrapRetry:  10 * time.Second,
		UnhandledPolicy: config.UnhandledFail,
	}
}

func newStore(t *testing.T) *localstore.Store {
	t.Helper()
	return localstore.New(filepath.Join(t.TempDir(), "app.json"))
}

func seedApp(t *testing.T, store *localstore.Store, deviceID string) {
	t.Helper()
	require.NoError(t, store.Save(&state.AppConfig{
		AppInstallPath: filepath.Dir(store.Path()),
		BinName:        "pma-agent",
		Version:        client.SemanticVersion{Major: 1},
		UserID:         "user-1",
		UserSecret:     "secret-1",
		DeviceID:       deviceID,
	}))
}

func newAgent(t *testing.T, api *fakeAPI, exec base.Executor, store *localstore.Store, sleeper clock.Sleeper) *Agent {
	t.Helper()
	a, err := New(testConfig(), Dependencies{
		API:      api,
		Store:    store,
		Executor: exec,
		Identity: func() (*config.Identity, error) { return nil, client.ErrIdentityMissing },
		Hostname: func(context.Context) string { return "host-a" },
		Sleeper:  sleeper,
	})
	require.NoError(t, err)
	return a
}

// readyAgent 已完成身份引导的 Agent
func readyAgent(t *testing.T, api *fakeAPI, exec base.Executor) *Agent {
	t.Helper()
	store := newStore(t)
	seedApp(t, store, "device-1")
	a := newAgent(t, api, exec, store, clock.NewFake(nil))
	require.NoError(t, a.Bootstrap(context.Background()))
	return a
}

func strPtr(s string) *string { return &s }

// ==================== 主循环 ====================

func TestStepEmptyPoll(t *testing.T) {
	api := &fakeAPI{}
	a := readyAgent(t, api, manager.NewExecutorManager(nil))

	assert.Equal(t, 5*time.Second, a.Step(context.Background()))
	assert.Empty(t, api.updates)
	assert.Equal(t, []string{"device-1"}, api.fetchedFor)
}

func TestStepCommandWithoutIDIsIgnored(t *testing.T) {
	api := &fakeAPI{command: &client.Command{}}
	exec := &recordingExecutor{inner: manager.NewExecutorManager(nil)}
	a := readyAgent(t, api, exec)

	assert.Equal(t, 5*time.Second, a.Step(context.Background()))
	assert.Empty(t, api.updates)
	assert.Empty(t, exec.calls)
}

func TestStepFetchError(t *testing.T) {
	api := &fakeAPI{fetchErr: errs.NewError(errs.ServerError, "GET /commands/recent returned 500", nil)}
	exec := &recordingExecutor{inner: manager.NewExecutorManager(nil)}
	a := readyAgent(t, api, exec)

	assert.Equal(t, 10*time.Second, a.Step(context.Background()))
	assert.Empty(t, api.updates)
	assert.Empty(t, exec.calls)
}

func TestStepSuccessPath(t *testing.T) {
	api := &fakeAPI{command: &client.Command{ID: "c1", Name: client.CommandTest, Status: client.StatusSent}}
	exec := &recordingExecutor{inner: manager.NewExecutorManager(nil)}
	a := readyAgent(t, api, exec)

	assert.Equal(t, time.Second, a.Step(context.Background()))
	assert.Equal(t, []statusUpdate{
		{"c1", client.StatusReceived},
		{"c1", client.StatusTerminated},
	}, api.updates)
	assert.Equal(t, []string{"c1"}, exec.calls)
}

func TestStepShellMissingArgsReportsFailed(t *testing.T) {
	api := &fakeAPI{command: &client.Command{ID: "c1", Name: client.CommandShellCommand}}
	a := readyAgent(t, api, manager.NewExecutorManager(nil))

	a.Step(context.Background())
	assert.Equal(t, []statusUpdate{
		{"c1", client.StatusReceived},
		{"c1", client.StatusFailed},
	}, api.updates)
}

func TestStepShellCommandRuns(t *testing.T) {
	api := &fakeAPI{command: &client.Command{ID: "c2", Name: client.CommandShellCommand, Args: strPtr("exit 0")}}
	a := readyAgent(t, api, manager.NewExecutorManager(&config.ExecutorConfig{ShellTimeout: 10 * time.Second}))

	a.Step(context.Background())
	require.Len(t, api.updates, 2)
	assert.Equal(t, client.StatusTerminated, api.updates[1].status)
}

func TestStepAckFailureAbandons(t *testing.T) {
	api := &fakeAPI{
		command: &client.Command{ID: "c1", Name: client.CommandTest},
		ackErr:  errs.NewError(errs.NetworkError, "PATCH", errors.New("reset")),
	}
	exec := &recordingExecutor{inner: manager.NewExecutorManager(nil)}
	a := readyAgent(t, api, exec)

	assert.Equal(t, time.Second, a.Step(context.Background()))
	assert.Equal(t, []statusUpdate{{"c1", client.StatusReceived}}, api.updates)
	assert.Empty(t, exec.calls)
}

func TestStepReportFailureIsNotRetried(t *testing.T) {
	api := &fakeAPI{
		command:   &client.Command{ID: "c1", Name: client.CommandTest},
		reportErr: errs.NewError(errs.ServerError, "PATCH", nil),
	}
	a := readyAgent(t, api, manager.NewExecutorManager(nil))

	assert.Equal(t, time.Second, a.Step(context.Background()))
	assert.Len(t, api.updates, 2)
}

func TestStepUnhandledPolicy(t *testing.T) {
	cmd := &client.Command{ID: "u1", Name: client.CommandUpdate}

	api := &fakeAPI{command: cmd}
	a := readyAgent(t, api, manager.NewExecutorManager(nil))
	a.Step(context.Background())
	assert.Equal(t, []statusUpdate{
		{"u1", client.StatusReceived},
		{"u1", client.StatusFailed},
	}, api.updates)

	api = &fakeAPI{command: cmd}
	a = readyAgent(t, api, stubExecutor{result: base.Unhandled(client.CommandUpdate)})
	a.cfg.UnhandledPolicy = config.UnhandledIgnore
	a.Step(context.Background())
	assert.Equal(t, []statusUpdate{{"u1", client.StatusReceived}}, api.updates)
}

func TestTaggedAddsCommandID(t *testing.T) {
	err := tagged("c9", errors.New("plain"))
	assert.Equal(t, "c9", errs.CommandIDOf(err))
	assert.Equal(t, errs.UnknownError, errs.KindOf(err))

	orig := errs.NewCommandError(errs.ParseError, "c1", "no args found for shell cmd", nil)
	assert.Same(t, orig, tagged("c1", orig))

	kept := tagged("c2", errs.NewError(errs.IoError, "disk", nil))
	assert.Equal(t, errs.IoError, errs.KindOf(kept))
	assert.Equal(t, "c2", errs.CommandIDOf(kept))
}

func TestRunCancelled(t *testing.T) {
	api := &fakeAPI{}
	store := newStore(t)
	seedApp(t, store, "device-1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := clock.NewFake(func(n int, _ time.Duration) {
		if n == 3 {
			cancel()
		}
	})
	a := newAgent(t, api, manager.NewExecutorManager(nil), store, sleeper)

	assert.ErrorIs(t, a.Run(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, sleeper.Sleeps())
	assert.Len(t, api.fetchedFor, 3)
}

// ==================== 身份引导 ====================

func TestBootstrapReusesPersistedDevice(t *testing.T) {
	api := &fakeAPI{}
	a := readyAgent(t, api, manager.NewExecutorManager(nil))

	assert.Equal(t, "device-1", a.DeviceID())
	assert.Empty(t, api.registered)
}

func TestBootstrapRegistersAndPersists(t *testing.T) {
	api := &fakeAPI{}
	store := newStore(t)
	seedApp(t, store, "")
	a := newAgent(t, api, manager.NewExecutorManager(nil), store, clock.NewFake(nil))

	require.NoError(t, a.Bootstrap(context.Background()))
	assert.Equal(t, "device-new", a.DeviceID())
	require.Len(t, api.registered, 1)
	assert.Equal(t, &client.RegisterDeviceRequest{
		DeviceName: "host-a",
		UserID:     "user-1",
		UserSecret: "secret-1",
		IssuerID:   "user-1",
	}, api.registered[0])

	var app state.AppConfig
	_, err := store.Load(&app)
	require.NoError(t, err)
	assert.Equal(t, "device-new", app.DeviceID)
	assert.Equal(t, "user-1", app.UserID)
}

func TestBootstrapUsesConfiguredDeviceName(t *testing.T) {
	api := &fakeAPI{}
	store := newStore(t)
	seedApp(t, store, "")
	a := newAgent(t, api, manager.NewExecutorManager(nil), store, clock.NewFake(nil))
	a.cfg.DeviceName = "kiosk-12"

	require.NoError(t, a.Bootstrap(context.Background()))
	assert.Equal(t, "kiosk-12", api.registered[0].DeviceName)
}

func TestBootstrapFallsBackToEnvIdentity(t *testing.T) {
	api := &fakeAPI{}
	a, err := New(testConfig(), Dependencies{
		API:      api,
		Store:    newStore(t),
		Executor: manager.NewExecutorManager(nil),
		Identity: func() (*config.Identity, error) {
			return &config.Identity{UserID: "env-user", UserSecret: "env-secret"}, nil
		},
		Hostname: func(context.Context) string { return "host-a" },
		Sleeper:  clock.NewFake(nil),
	})
	require.NoError(t, err)

	require.NoError(t, a.Bootstrap(context.Background()))
	assert.Equal(t, "env-user", api.registered[0].UserID)
}

func TestBootstrapRetriesWithoutIdentity(t *testing.T) {
	api := &fakeAPI{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := clock.NewFake(func(n int, _ time.Duration) {
		if n == 3 {
			cancel()
		}
	})
	a := newAgent(t, api, manager.NewExecutorManager(nil), newStore(t), sleeper)

	assert.ErrorIs(t, a.Bootstrap(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, sleeper.Sleeps())
	assert.Empty(t, api.registered)
}

func TestBootstrapRetriesRegistration(t *testing.T) {
	api := &fakeAPI{registerErr: errs.NewError(errs.InputError, "POST /devices/register returned 422", nil)}
	store := newStore(t)
	seedApp(t, store, "")
	sleeper := clock.NewFake(func(n int, _ time.Duration) {
		if n == 2 {
			api.mu.Lock()
			api.registerErr = nil
			api.mu.Unlock()
		}
	})
	a := newAgent(t, api, manager.NewExecutorManager(nil), store, sleeper)

	require.NoError(t, a.Bootstrap(context.Background()))
	assert.Len(t, api.registered, 3)
	assert.Equal(t, "device-new", a.DeviceID())
}
