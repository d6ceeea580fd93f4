/**
 * 模拟控制端内存状态
 * @author: sun977
 * @date: 2026.10.14
 * @description: 开发用控制端的设备注册表、命令队列与发布版本，全部保存在内存中
 * @func: Registry, NewRegistry, RegisterDevice, Enqueue, Recent, UpdateStatus
 */
package registry

import (
	"errors"
	"sync"

	"github.com/pma-it-suite/daemon/internal/model/client"
	"github.com/pma-it-suite/daemon/internal/pkg/utils"
)

var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoCommand      = errors.New("no outstanding command")
)

// Device 已注册设备
type Device struct {
	ID       string `json:"device_id"`
	Name     string `json:"device_name"`
	UserID   string `json:"user_id"`
	IssuerID string `json:"issuer_id"`
}

// Registry 内存状态
type Registry struct {
	mu       sync.RWMutex
	version  client.SemanticVersion
	binary   []byte
	devices  map[string]*Device
	commands []*client.Command
}

// NewRegistry 创建内存状态
func NewRegistry(version client.SemanticVersion, binary []byte) *Registry {
	return &Registry{
		version: version,
		binary:  binary,
		devices: make(map[string]*Device),
	}
}

// ==================== 发布 ====================

func (r *Registry) Version() client.SemanticVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func (r *Registry) SetVersion(v client.SemanticVersion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version = v
}

func (r *Registry) Binary() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.binary
}

func (r *Registry) SetBinary(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.binary = b
}

// ==================== 设备 ====================

// RegisterDevice 每次注册都分配新ID
func (r *Registry) RegisterDevice(req *client.RegisterDeviceRequest) *Device {
	d := &Device{
		ID:       utils.NewRequestID(),
		Name:     req.DeviceName,
		UserID:   req.UserID,
		IssuerID: req.IssuerID,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.ID] = d
	return d
}

func (r *Registry) Device(id string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

// ==================== 命令 ====================

// Enqueue 为设备下发命令，状态为 Pending
func (r *Registry) Enqueue(deviceID string, name client.CommandName, args *string) (*client.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, ErrUnknownDevice
	}
	cmd := &client.Command{
		ID:       utils.NewShortID(),
		Status:   client.StatusPending,
		Name:     name,
		Args:     args,
		IssuerID: d.IssuerID,
		DeviceID: deviceID,
	}
	r.commands = append(r.commands, cmd)
	return copyCommand(cmd), nil
}

// Recent 设备最近一条未取走的命令，取走后标记为 Sent
// 只返回最新一条，更早的命令可能一直得不到处理
func (r *Registry) Recent(deviceID string) (*client.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.commands) - 1; i >= 0; i-- {
		cmd := r.commands[i]
		if cmd.DeviceID != deviceID {
			continue
		}
		if cmd.Status == client.StatusPending || cmd.Status == client.StatusSent {
			cmd.Status = client.StatusSent
			return copyCommand(cmd), nil
		}
	}
	return nil, ErrNoCommand
}

// UpdateStatus 更新命令状态
func (r *Registry) UpdateStatus(commandID string, status client.CommandStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range r.commands {
		if cmd.ID == commandID {
			cmd.Status = status
			return nil
		}
	}
	return ErrUnknownCommand
}

// Commands 全部命令快照
func (r *Registry) Commands() []*client.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client.Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, copyCommand(cmd))
	}
	return out
}

func copyCommand(cmd *client.Command) *client.Command {
	c := *cmd
	if cmd.Args != nil {
		args := *cmd.Args
		c.Args = &args
	}
	return &c
}
