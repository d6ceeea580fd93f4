/**
 * 配置管理
 * @author: sun977
 * @date: 2026.10.14
 * @description: Launcher 与 Agent 共用的配置结构，负责加载和管理所有配置
 * @func: Config 及各分段配置, LoadConfig, GetConfig, Dump
 */
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	// 应用配置
	App *AppConfig `yaml:"app" mapstructure:"app"`

	// 日志配置
	Log *LogConfig `yaml:"log" mapstructure:"log"`

	// 控制端连接配置
	Control *ControlConfig `yaml:"control" mapstructure:"control"`

	// Launcher 配置
	Launcher *LauncherConfig `yaml:"launcher" mapstructure:"launcher"`

	// Agent 配置
	Agent *AgentConfig `yaml:"agent" mapstructure:"agent"`

	// 执行器配置
	Executor *ExecutorConfig `yaml:"executor" mapstructure:"executor"`

	// 系统服务配置
	Service *ServiceConfig `yaml:"service" mapstructure:"service"`

	// 开发用控制端模拟服务配置
	MockServer *MockServerConfig `yaml:"mock_server" mapstructure:"mock_server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 调试模式
	EnvFile     string `yaml:"env_file" mapstructure:"env_file"`       // 额外加载的 .env 文件
	WatchConfig bool   `yaml:"watch_config" mapstructure:"watch_config"` // 监听配置文件变化并热更新日志配置
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别 (debug/info/warn/error)
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式 (json/text)
	Output     string `yaml:"output" mapstructure:"output"`           // 日志输出 (stdout/stderr/file)
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 最大文件大小（MB）
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 最大备份数
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 最大保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// ControlConfig 控制端连接配置
type ControlConfig struct {
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`                 // 控制端地址
	RequestTimeout  time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`   // 单次请求超时
	DownloadTimeout time.Duration `yaml:"download_timeout" mapstructure:"download_timeout"` // 二进制下载超时
	DownloadPath    string        `yaml:"download_path" mapstructure:"download_path"`       // 二进制下载路径
	RetryCount      int           `yaml:"retry_count" mapstructure:"retry_count"`           // 传输层重试次数
	RetryWait       time.Duration `yaml:"retry_wait" mapstructure:"retry_wait"`             // 重试最小等待
	RetryMaxWait    time.Duration `yaml:"retry_max_wait" mapstructure:"retry_max_wait"`     // 重试最大等待
	SkipTLSVerify   bool          `yaml:"skip_tls_verify" mapstructure:"skip_tls_verify"`   // 跳过TLS验证
}

// LauncherConfig Launcher 配置
type LauncherConfig struct {
	StateDir       string        `yaml:"state_dir" mapstructure:"state_dir"`               // Launcher 状态目录
	InstallPath    string        `yaml:"install_path" mapstructure:"install_path"`         // 应用安装目录
	BinName        string        `yaml:"bin_name" mapstructure:"bin_name"`                 // 应用二进制名
	Version        string        `yaml:"version" mapstructure:"version"`                   // Launcher 自身版本
	ErrorBackoff   time.Duration `yaml:"error_backoff" mapstructure:"error_backoff"`       // 出错后等待
	UpToDateSleep  time.Duration `yaml:"up_to_date_sleep" mapstructure:"up_to_date_sleep"` // 已是最新时等待
	ReconcileDelay time.Duration `yaml:"reconcile_delay" mapstructure:"reconcile_delay"`   // 安装/升级后复检等待
}

// AgentConfig Agent 配置
type AgentConfig struct {
	DeviceName      string        `yaml:"device_name" mapstructure:"device_name"`           // 注册设备名，空则取主机名
	InstallPath     string        `yaml:"install_path" mapstructure:"install_path"`         // 安装目录，app.json 所在位置
	ShortSleep      time.Duration `yaml:"short_sleep" mapstructure:"short_sleep"`           // 每轮结束等待
	MediumSleep     time.Duration `yaml:"medium_sleep" mapstructure:"medium_sleep"`         // 无命令时等待
	LongSleep       time.Duration `yaml:"long_sleep" mapstructure:"long_sleep"`             // 拉取出错时等待
	BootstrapRetry  time.Duration `yaml:"bootstrap_retry" mapstructure:"bootstrap_retry"`   // 身份引导失败重试间隔
	UnhandledPolicy string        `yaml:"unhandled_policy" mapstructure:"unhandled_policy"` // 未处理命令策略 (fail/ignore)
}

// ExecutorConfig 执行器配置
type ExecutorConfig struct {
	Shell          string        `yaml:"shell" mapstructure:"shell"`                       // 解释器，空则按平台选择
	ShellTimeout   time.Duration `yaml:"shell_timeout" mapstructure:"shell_timeout"`       // shell 命令超时
	MaxOutputBytes int           `yaml:"max_output_bytes" mapstructure:"max_output_bytes"` // 捕获输出上限
}

// ServiceConfig 系统服务配置
type ServiceConfig struct {
	Label   string `yaml:"label" mapstructure:"label"`       // 服务标识
	Backend string `yaml:"backend" mapstructure:"backend"`   // auto/systemd/launchd
	UnitDir string `yaml:"unit_dir" mapstructure:"unit_dir"` // systemd unit / launchd plist 目录
}

// MockServerConfig 模拟控制端配置
type MockServerConfig struct {
	Listen     string `yaml:"listen" mapstructure:"listen"`           // 监听地址
	Version    string `yaml:"version" mapstructure:"version"`         // 对外发布的应用版本
	BinaryPath string `yaml:"binary_path" mapstructure:"binary_path"` // /bintest 返回的文件
}

// 全局配置
var (
	globalConfig     *Config
	globalConfigFile string
)

// LoadConfig 加载配置
func LoadConfig(configPath ...string) (*Config, error) {
	var path string
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	loader := NewConfigLoader(path, EnvPrefix)
	config, err := loader.LoadConfig()
	if err != nil {
		return nil, err
	}

	globalConfig = config
	globalConfigFile = loader.GetConfigPath()
	return config, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return globalConfig
}

// GetConfigFile 实际加载的配置文件，未找到配置文件时为空
func GetConfigFile() string {
	return globalConfigFile
}

// Dump 以YAML输出配置
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// DefaultInstallPath 平台默认安装目录
func DefaultInstallPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(programData(), "pma-daemon")
	case "darwin":
		return "/usr/local/pma-daemon"
	default:
		return "/opt/pma-daemon"
	}
}

// DefaultStateDir 平台默认 Launcher 状态目录
func DefaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(programData(), "pma-launcher")
	case "darwin":
		return "/Library/Application Support/pma-launcher"
	default:
		return "/var/lib/pma-launcher"
	}
}

// DefaultBinName 平台默认二进制名
func DefaultBinName() string {
	if runtime.GOOS == "windows" {
		return "pma-agent.exe"
	}
	return "pma-agent"
}

func programData() string {
	if dir := os.Getenv("ProgramData"); dir != "" {
		return dir
	}
	return `C:\ProgramData`
}
