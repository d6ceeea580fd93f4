package servicectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	systemd "github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/unit"
	dbus "github.com/godbus/dbus/v5"
)

const (
	defaultUnitDir = "/etc/systemd/system"
	systemdSocket  = "/run/systemd/private"
)

// unitConn systemd 连接中用到的方法
type unitConn interface {
	ReloadContext(ctx context.Context) error
	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []systemd.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]systemd.DisableUnitFileChange, error)
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*systemd.Property, error)
	Close()
}

// ConnectFunc 建立 systemd 连接
type ConnectFunc func(ctx context.Context) (unitConn, error)

// SystemdManager systemd 后端
type SystemdManager struct {
	unitDir string
	connect ConnectFunc
}

// NewSystemdManager 创建 systemd 后端，connect 为空时连接系统 systemd
func NewSystemdManager(unitDir string, connect ConnectFunc) *SystemdManager {
	if unitDir == "" {
		unitDir = defaultUnitDir
	}
	if connect == nil {
		connect = connectSystemd
	}
	return &SystemdManager{unitDir: unitDir, connect: connect}
}

// connectSystemd root 且存在私有套接字时直连 systemd，否则走系统总线
func connectSystemd(ctx context.Context) (unitConn, error) {
	if os.Getuid() == 0 {
		if stat, err := os.Stat(systemdSocket); err == nil && stat.Mode()&os.ModeSocket != 0 {
			conn, err := systemd.NewConnection(privateDialer)
			if err == nil {
				return conn, nil
			}
		}
	}
	conn, err := systemd.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to systemd: %w", err)
	}
	return conn, nil
}

func privateDialer() (*dbus.Conn, error) {
	conn, err := dbus.Dial("unix:path=" + systemdSocket)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to systemd socket: %w", err)
	}
	methods := []dbus.Auth{dbus.AuthExternal(strconv.Itoa(os.Getuid()))}
	if err := conn.Auth(methods); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to authenticate with systemd: %w", err)
	}
	return conn, nil
}

func unitName(label string) string {
	return label + ".service"
}

func (m *SystemdManager) unitPath(label string) string {
	return filepath.Join(m.unitDir, unitName(label))
}

// RenderUnit 生成 unit 文件内容
func RenderUnit(spec *ServiceSpec) io.Reader {
	description := spec.Description
	if description == "" {
		description = spec.Label
	}
	execStart := append([]string{spec.Program}, spec.Args...)
	for i, part := range execStart {
		if strings.ContainsAny(part, " \t\"") {
			execStart[i] = strconv.Quote(part)
		}
	}

	options := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", description),
		unit.NewUnitOption("Unit", "After", "network-online.target"),
		unit.NewUnitOption("Unit", "Wants", "network-online.target"),
		unit.NewUnitOption("Service", "Type", "simple"),
		unit.NewUnitOption("Service", "ExecStart", strings.Join(execStart, " ")),
		unit.NewUnitOption("Service", "WorkingDirectory", spec.WorkingDir),
		unit.NewUnitOption("Service", "Restart", "always"),
		unit.NewUnitOption("Service", "RestartSec", "5"),
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		options = append(options, unit.NewUnitOption("Service", "Environment", strconv.Quote(k+"="+spec.Env[k])))
	}

	options = append(options, unit.NewUnitOption("Install", "WantedBy", "multi-user.target"))
	return unit.Serialize(options)
}

// Install 写入 unit 文件、重载并设置开机启动
func (m *SystemdManager) Install(ctx context.Context, spec *ServiceSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(m.unitDir, 0o755); err != nil {
		return fmt.Errorf("unable to create unit dir: %w", err)
	}

	path := m.unitPath(spec.Label)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create unit file: %w", err)
	}
	if _, err := io.Copy(f, RenderUnit(spec)); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("unable to write unit file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to write unit file: %w", err)
	}

	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("unable to execute daemon-reload: %w", err)
	}
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{path}, false, true); err != nil {
		return fmt.Errorf("unable to enable %s: %w", unitName(spec.Label), err)
	}
	return nil
}

// Uninstall 取消开机启动并删除 unit 文件
func (m *SystemdManager) Uninstall(ctx context.Context, label string) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	path := m.unitPath(label)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unit %s is not installed", unitName(label))
	}
	if _, err := conn.DisableUnitFilesContext(ctx, []string{unitName(label)}, false); err != nil {
		return fmt.Errorf("unable to disable %s: %w", unitName(label), err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("unable to remove unit file: %w", err)
	}
	return conn.ReloadContext(ctx)
}

// Start 启动服务并等待 job 完成
func (m *SystemdManager) Start(ctx context.Context, label string) error {
	return m.runJob(ctx, label, "start", func(conn unitConn, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, unitName(label), "replace", ch)
	})
}

// Stop 停止服务并等待 job 完成
func (m *SystemdManager) Stop(ctx context.Context, label string) error {
	return m.runJob(ctx, label, "stop", func(conn unitConn, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, unitName(label), "replace", ch)
	})
}

func (m *SystemdManager) runJob(ctx context.Context, label, action string, submit func(unitConn, chan<- string) (int, error)) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan string, 1)
	if _, err := submit(conn, ch); err != nil {
		return fmt.Errorf("unable to %s %s: %w", action, unitName(label), err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%s %s: job finished with %q", action, unitName(label), result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status 返回 ActiveState
func (m *SystemdManager) Status(ctx context.Context, label string) (string, error) {
	conn, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unitName(label), "ActiveState")
	if err != nil {
		return "", fmt.Errorf("unable to query %s: %w", unitName(label), err)
	}
	if state, ok := prop.Value.Value().(string); ok {
		return state, nil
	}
	return "", fmt.Errorf("unable to handle queried property: %v", prop.Value)
}
