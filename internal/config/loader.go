package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "FLEET"

// ConfigLoader 配置加载器
type ConfigLoader struct {
	configPath string
	envPrefix  string
	viper      *viper.Viper
}

// NewConfigLoader 创建配置加载器
// configPath 可以是目录，也可以是具体的 yaml 文件
func NewConfigLoader(configPath, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = EnvPrefix
	}

	return &ConfigLoader{
		configPath: configPath,
		envPrefix:  envPrefix,
		viper:      viper.New(),
	}
}

// LoadConfig 加载配置
// 配置文件可选，缺失时只使用默认值和环境变量
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	cl.viper.SetConfigType("yaml")

	// 设置环境变量前缀
	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.AutomaticEnv()
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cl.bindEnvVars()
	cl.setDefaults()

	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cl.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadConfigFile 加载配置文件
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configPath == "" {
		if envPath := os.Getenv(cl.envPrefix + "_CONFIG_PATH"); envPath != "" {
			cl.configPath = envPath
		}
	}

	// 显式指定文件时必须存在
	if ext := strings.ToLower(filepath.Ext(cl.configPath)); ext == ".yaml" || ext == ".yml" {
		cl.viper.SetConfigFile(cl.configPath)
		return cl.viper.ReadInConfig()
	}

	if cl.configPath != "" {
		cl.viper.AddConfigPath(cl.configPath)
	}
	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")

	// 先尝试环境特定的配置文件
	cl.viper.SetConfigName(fmt.Sprintf("config.%s", cl.getEnvironment()))
	err := cl.viper.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return err
	}

	cl.viper.SetConfigName("config")
	if err := cl.viper.ReadInConfig(); err != nil {
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// getEnvironment 获取运行环境
func (cl *ConfigLoader) getEnvironment() string {
	env := os.Getenv(cl.envPrefix + "_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "production"
	}
	return env
}

// bindEnvVars 绑定不符合前缀规则的常用环境变量
func (cl *ConfigLoader) bindEnvVars() {
	cl.viper.BindEnv("control.base_url", cl.envPrefix+"_CONTROL_BASE_URL", cl.envPrefix+"_API_URL")
	cl.viper.BindEnv("launcher.install_path", cl.envPrefix+"_LAUNCHER_INSTALL_PATH", cl.envPrefix+"_INSTALL_PATH")
	cl.viper.BindEnv("agent.install_path", cl.envPrefix+"_AGENT_INSTALL_PATH", cl.envPrefix+"_INSTALL_PATH")
	cl.viper.BindEnv("log.level", cl.envPrefix+"_LOG_LEVEL", "LOG_LEVEL")
}

// setDefaults 设置默认值
func (cl *ConfigLoader) setDefaults() {
	// App默认值
	cl.viper.SetDefault("app.name", "pma-daemon")
	cl.viper.SetDefault("app.environment", "production")
	cl.viper.SetDefault("app.debug", false)
	cl.viper.SetDefault("app.env_file", "")
	cl.viper.SetDefault("app.watch_config", false)

	// 日志默认值
	cl.viper.SetDefault("log.level", "info")
	cl.viper.SetDefault("log.format", "text")
	cl.viper.SetDefault("log.output", "stdout")
	cl.viper.SetDefault("log.file_path", "./logs/daemon.log")
	cl.viper.SetDefault("log.max_size", 50)
	cl.viper.SetDefault("log.max_backups", 3)
	cl.viper.SetDefault("log.max_age", 28)
	cl.viper.SetDefault("log.compress", true)
	cl.viper.SetDefault("log.caller", false)

	// 控制端默认值
	cl.viper.SetDefault("control.base_url", "http://127.0.0.1:5001")
	cl.viper.SetDefault("control.request_timeout", "30s")
	cl.viper.SetDefault("control.download_timeout", "10m")
	cl.viper.SetDefault("control.download_path", "/bintest")
	cl.viper.SetDefault("control.retry_count", 2)
	cl.viper.SetDefault("control.retry_wait", "1s")
	cl.viper.SetDefault("control.retry_max_wait", "10s")
	cl.viper.SetDefault("control.skip_tls_verify", false)

	// Launcher默认值
	cl.viper.SetDefault("launcher.state_dir", DefaultStateDir())
	cl.viper.SetDefault("launcher.install_path", DefaultInstallPath())
	cl.viper.SetDefault("launcher.bin_name", DefaultBinName())
	cl.viper.SetDefault("launcher.version", "0.1.0")
	cl.viper.SetDefault("launcher.error_backoff", "60s")
	cl.viper.SetDefault("launcher.up_to_date_sleep", "24h")
	cl.viper.SetDefault("launcher.reconcile_delay", "0s")

	// Agent默认值
	cl.viper.SetDefault("agent.device_name", "")
	cl.viper.SetDefault("agent.install_path", ".")
	cl.viper.SetDefault("agent.short_sleep", "1s")
	cl.viper.SetDefault("agent.medium_sleep", "5s")
	cl.viper.SetDefault("agent.long_sleep", "10s")
	cl.viper.SetDefault("agent.bootstrap_retry", "10s")
	cl.viper.SetDefault("agent.unhandled_policy", UnhandledFail)

	// 执行器默认值
	cl.viper.SetDefault("executor.shell", "")
	cl.viper.SetDefault("executor.shell_timeout", "5m")
	cl.viper.SetDefault("executor.max_output_bytes", 1<<20)

	// 服务默认值
	cl.viper.SetDefault("service.label", "com.pma.daemon")
	cl.viper.SetDefault("service.backend", "auto")
	cl.viper.SetDefault("service.unit_dir", "")

	// 模拟控制端默认值
	cl.viper.SetDefault("mock_server.listen", "127.0.0.1:5001")
	cl.viper.SetDefault("mock_server.version", "0.1.0")
	cl.viper.SetDefault("mock_server.binary_path", "")
}

// 未处理命令策略
const (
	UnhandledFail   = "fail"
	UnhandledIgnore = "ignore"
)

// validateConfig 验证配置
func (cl *ConfigLoader) validateConfig(config *Config) error {
	if config.Control == nil || config.Control.BaseURL == "" {
		return fmt.Errorf("control base url is required")
	}
	u, err := url.Parse(config.Control.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid control base url: %q", config.Control.BaseURL)
	}

	switch strings.ToLower(config.Agent.UnhandledPolicy) {
	case UnhandledFail, UnhandledIgnore:
	default:
		return fmt.Errorf("invalid agent unhandled policy: %q", config.Agent.UnhandledPolicy)
	}

	switch strings.ToLower(config.Service.Backend) {
	case "auto", "systemd", "launchd":
	default:
		return fmt.Errorf("invalid service backend: %q", config.Service.Backend)
	}

	if config.Executor.ShellTimeout <= 0 {
		return fmt.Errorf("executor shell timeout must be positive")
	}
	if config.Launcher.BinName == "" || strings.ContainsAny(config.Launcher.BinName, `/\`) {
		return fmt.Errorf("invalid launcher bin name: %q", config.Launcher.BinName)
	}
	if config.Service.Label == "" {
		return fmt.Errorf("service label is required")
	}

	return nil
}

// GetConfigPath 获取实际使用的配置文件路径
func (cl *ConfigLoader) GetConfigPath() string {
	return cl.viper.ConfigFileUsed()
}
