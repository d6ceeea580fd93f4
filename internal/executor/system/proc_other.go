//go:build !unix

package system

import "os/exec"

// setProcessGroup 非 unix 平台沿用 CommandContext 默认的 Kill
func setProcessGroup(cmd *exec.Cmd) {}
