package servicectl

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

const defaultPlistDir = "/Library/LaunchDaemons"

// CommandRunner 执行外部命令并返回合并输出
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// LaunchdManager launchd 后端，通过 launchctl 控制 system 域服务
type LaunchdManager struct {
	plistDir string
	run      CommandRunner
}

// NewLaunchdManager 创建 launchd 后端，run 为空时直接执行 launchctl
func NewLaunchdManager(plistDir string, run CommandRunner) *LaunchdManager {
	if plistDir == "" {
		plistDir = defaultPlistDir
	}
	if run == nil {
		run = execRunner
	}
	return &LaunchdManager{plistDir: plistDir, run: run}
}

func (m *LaunchdManager) plistPath(label string) string {
	return filepath.Join(m.plistDir, label+".plist")
}

// RenderPlist 生成 launchd plist
func RenderPlist(spec *ServiceSpec) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	buf.WriteString(`<plist version="1.0">` + "\n<dict>\n")

	writeKey := func(key string) {
		buf.WriteString("\t<key>")
		xml.EscapeText(&buf, []byte(key))
		buf.WriteString("</key>\n")
	}
	writeString := func(indent, value string) {
		buf.WriteString(indent + "<string>")
		xml.EscapeText(&buf, []byte(value))
		buf.WriteString("</string>\n")
	}

	writeKey("Label")
	writeString("\t", spec.Label)

	writeKey("ProgramArguments")
	buf.WriteString("\t<array>\n")
	writeString("\t\t", spec.Program)
	for _, arg := range spec.Args {
		writeString("\t\t", arg)
	}
	buf.WriteString("\t</array>\n")

	writeKey("WorkingDirectory")
	writeString("\t", spec.WorkingDir)

	if len(spec.Env) > 0 {
		keys := make([]string, 0, len(spec.Env))
		for k := range spec.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeKey("EnvironmentVariables")
		buf.WriteString("\t<dict>\n")
		for _, k := range keys {
			buf.WriteString("\t\t<key>")
			xml.EscapeText(&buf, []byte(k))
			buf.WriteString("</key>\n")
			writeString("\t\t", spec.Env[k])
		}
		buf.WriteString("\t</dict>\n")
	}

	writeKey("RunAtLoad")
	buf.WriteString("\t<true/>\n")
	writeKey("KeepAlive")
	buf.WriteString("\t<true/>\n")
	buf.WriteString("</dict>\n</plist>\n")
	return buf.Bytes(), nil
}

// Install 写入 plist 并加载到 system 域
func (m *LaunchdManager) Install(ctx context.Context, spec *ServiceSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	data, err := RenderPlist(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.plistDir, 0o755); err != nil {
		return fmt.Errorf("unable to create plist dir: %w", err)
	}
	path := m.plistPath(spec.Label)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write plist: %w", err)
	}
	return m.launchctl(ctx, "bootstrap", "system", path)
}

// Uninstall 从 system 域卸载并删除 plist
func (m *LaunchdManager) Uninstall(ctx context.Context, label string) error {
	bootoutErr := m.launchctl(ctx, "bootout", "system/"+label)
	if err := os.Remove(m.plistPath(label)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to remove plist: %w", err)
	}
	return bootoutErr
}

// Start 启动服务
func (m *LaunchdManager) Start(ctx context.Context, label string) error {
	return m.launchctl(ctx, "kickstart", "system/"+label)
}

// Stop 停止服务
func (m *LaunchdManager) Stop(ctx context.Context, label string) error {
	return m.launchctl(ctx, "kill", "SIGTERM", "system/"+label)
}

// Status 返回 launchctl print 中的 state 行
func (m *LaunchdManager) Status(ctx context.Context, label string) (string, error) {
	out, err := m.run(ctx, "launchctl", "print", "system/"+label)
	if err != nil {
		return "", fmt.Errorf("launchctl print: %w: %s", err, strings.TrimSpace(string(out)))
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "state = ") {
			return strings.TrimPrefix(line, "state = "), nil
		}
	}
	return "unknown", nil
}

func (m *LaunchdManager) launchctl(ctx context.Context, args ...string) error {
	out, err := m.run(ctx, "launchctl", args...)
	if err != nil {
		return fmt.Errorf("launchctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
