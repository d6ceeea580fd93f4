/**
 * 本地持久化状态模型
 * @author: sun977
 * @date: 2026.10.14
 * @description: Launcher 与被管理应用各自的本地状态文档
 * @func: LauncherConfig 仅 Launcher 读写; AppConfig 由 Launcher 写入, 应用读取并回写 device_id
 */
package state

import "github.com/pma-it-suite/daemon/internal/model/client"

// LauncherConfig Launcher 自身状态
type LauncherConfig struct {
	BinName             string                 `json:"bin_name" yaml:"bin_name"`
	AppInstallPath      string                 `json:"app_install_path" yaml:"app_install_path"`
	AppVersion          client.SemanticVersion `json:"app_version" yaml:"app_version"`
	LauncherVersion     client.SemanticVersion `json:"launcher_version" yaml:"launcher_version"`
	UserID              string                 `json:"user_id" yaml:"user_id"`
	UserSecret          string                 `json:"user_secret" yaml:"-"`
	HasAppBeenInstalled bool                   `json:"has_app_been_installed" yaml:"has_app_been_installed"`
}

// AppConfig 被管理应用的状态，存放在安装目录下
// 文档不存在即视为未安装
type AppConfig struct {
	AppInstallPath string                 `json:"app_install_path" yaml:"app_install_path"`
	BinName        string                 `json:"bin_name" yaml:"bin_name"`
	Version        client.SemanticVersion `json:"version" yaml:"version"`
	UserID         string                 `json:"user_id" yaml:"user_id"`
	UserSecret     string                 `json:"user_secret" yaml:"-"`
	DeviceID       string                 `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	BinaryDigest   string                 `json:"binary_digest,omitempty" yaml:"binary_digest,omitempty"`
}

// HasIdentity user_id 与 user_secret 是否均已配置
func (c *AppConfig) HasIdentity() bool {
	return c != nil && c.UserID != "" && c.UserSecret != ""
}
