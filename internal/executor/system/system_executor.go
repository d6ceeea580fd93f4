/**
 * 系统命令执行器
 * @author: sun977
 * @date: 2026.10.14
 * @description: 通过平台 shell 执行 ShellCmd 命令，独立进程组、超时强杀、输出截断
 * @func: ShellExecutor, NewShellExecutor, Handle
 */
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pma-it-suite/daemon/internal/model/base"
	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"
)

const (
	DefaultShellTimeout   = 5 * time.Minute
	DefaultMaxOutputBytes = 1 << 20

	// 进程组被杀后等待管道关闭的上限
	waitDelay = 5 * time.Second
)

// ShellExecutor shell 命令执行器
type ShellExecutor struct {
	shell     string
	timeout   time.Duration
	maxOutput int
}

// NewShellExecutor 创建执行器，零值参数取默认
func NewShellExecutor(shell string, timeout time.Duration, maxOutput int) *ShellExecutor {
	if shell == "" {
		shell = defaultShell()
	}
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}
	return &ShellExecutor{shell: shell, timeout: timeout, maxOutput: maxOutput}
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "sh"
}

// shellArgs 组装解释器参数
func (e *ShellExecutor) shellArgs(script string) []string {
	if strings.EqualFold(e.shell, "cmd") || strings.HasSuffix(strings.ToLower(e.shell), "cmd.exe") {
		return []string{"/C", script}
	}
	return []string{"-c", script}
}

// Handle 执行 ShellCmd，args 缺失返回 ParseError
func (e *ShellExecutor) Handle(ctx context.Context, cmd *client.Command) (string, error) {
	script, ok := cmd.ArgString()
	if !ok || strings.TrimSpace(script) == "" {
		return "", base.NewCommandError(base.ParseError, cmd.ID, "no args found for shell cmd", nil)
	}
	return e.Run(ctx, cmd.ID, script)
}

// Run 执行脚本并返回标准输出
func (e *ShellExecutor) Run(ctx context.Context, commandID, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	proc := exec.CommandContext(ctx, e.shell, e.shellArgs(script)...)
	setProcessGroup(proc)
	proc.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	proc.Stdout = &limitWriter{buf: &stdout, limit: e.maxOutput}
	proc.Stderr = &limitWriter{buf: &stderr, limit: e.maxOutput}

	start := time.Now()
	err := proc.Run()
	logger.WithFields(map[string]interface{}{
		"command_id": commandID,
		"shell":      e.shell,
		"duration":   time.Since(start).String(),
	}).Debug("shell command finished")

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", base.NewCommandError(base.CommandExecutionError, commandID,
				fmt.Sprintf("command timed out after %s", e.timeout), err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := fmt.Sprintf("exit code %d", exitErr.ExitCode())
			if s := strings.TrimSpace(stderr.String()); s != "" {
				msg += ": " + s
			}
			return "", base.NewCommandError(base.CommandExecutionError, commandID, msg, err)
		}
		return "", base.NewCommandError(base.CommandExecutionError, commandID, "failed to spawn shell", err)
	}

	out := stdout.Bytes()
	if !utf8.Valid(out) {
		return "", base.NewCommandError(base.CommandExecutionError, commandID, "output is not valid utf-8", nil)
	}
	return string(out), nil
}

// limitWriter 超过上限后静默丢弃，避免子进程因管道阻塞
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
	n     int
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	remaining := lw.limit - lw.n
	if remaining <= 0 {
		return len(p), nil
	}
	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}
	n, err := lw.buf.Write(toWrite)
	lw.n += n
	return len(p), err
}
