/**
 * 命令相关模型
 * @author: sun977
 * @date: 2026.10.14
 * @description: 控制端下发给设备的命令及其状态，字段名与控制端JSON保持一致
 * @func: Command, CommandStatus, CommandName
 */
package client

import (
	"encoding/json"
	"fmt"
)

// ==================== 命令相关 ====================

// CommandStatus 命令状态，序列化为变体名
type CommandStatus string

const (
	StatusPending    CommandStatus = "Pending"
	StatusSent       CommandStatus = "Sent"
	StatusReceived   CommandStatus = "Received"
	StatusRunning    CommandStatus = "Running"
	StatusBlocked    CommandStatus = "Blocked"
	StatusTerminated CommandStatus = "Terminated"
	StatusFailed     CommandStatus = "Failed"
	StatusReady      CommandStatus = "Ready"
)

var validStatuses = map[CommandStatus]struct{}{
	StatusPending: {}, StatusSent: {}, StatusReceived: {}, StatusRunning: {},
	StatusBlocked: {}, StatusTerminated: {}, StatusFailed: {}, StatusReady: {},
}

// Valid 是否为已知状态
func (s CommandStatus) Valid() bool {
	_, ok := validStatuses[s]
	return ok
}

// UnmarshalJSON 拒绝未知状态
func (s *CommandStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := CommandStatus(raw)
	if !status.Valid() {
		return fmt.Errorf("unknown command status %q", raw)
	}
	*s = status
	return nil
}

// CommandName 命令类型
// 未知类型原样保留，由执行器判定为未处理
type CommandName string

const (
	CommandTest         CommandName = "Test"
	CommandShellCommand CommandName = "ShellCmd"
	CommandUpdate       CommandName = "Update"
	CommandInfo         CommandName = "Info"
	CommandHealth       CommandName = "Health"
)

// Command 控制端下发的命令
type Command struct {
	ID       string        `json:"_id"`
	Status   CommandStatus `json:"status"`
	Name     CommandName   `json:"name"`
	Args     *string       `json:"args"`
	IssuerID string        `json:"issuer_id"`
	DeviceID string        `json:"device_id"`
}

// ArgString 返回参数，未设置时返回空串与false
func (c *Command) ArgString() (string, bool) {
	if c.Args == nil {
		return "", false
	}
	return *c.Args, true
}

// FetchRecentCommandResponse GET /commands/recent 响应
type FetchRecentCommandResponse struct {
	Command Command `json:"command"`
}

// UpdateCommandStatusRequest PATCH /commands/update/status 请求
type UpdateCommandStatusRequest struct {
	CommandID string        `json:"command_id"`
	Status    CommandStatus `json:"status"`
}
