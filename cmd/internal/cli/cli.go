/*
 * @author: Sun977
 * @date: 2026.10.14
 * @description: 三个二进制共用的 CLI 辅助：panic 兜底、信号上下文、--log-level 透传
 */

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LogLevelEnv --log-level 通过该环境变量交给配置加载器
const LogLevelEnv = "FLEET_LOG_LEVEL"

// Execute 执行根命令，panic 和错误都以非零码退出
func Execute(root *cobra.Command) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] %s crashed unexpectedly: %v\n", root.Name(), r)
			os.Exit(1)
		}
	}()

	if err := root.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// BindGlobalFlags 注册 --config 与 --log-level
func BindGlobalFlags(root *cobra.Command, cfgFile *string) {
	root.PersistentFlags().StringVar(cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.yaml)")
	root.PersistentFlags().String("log-level", "", "日志级别 (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
}

// ApplyLogLevel 显式指定 --log-level 时覆盖配置中的日志级别，并同步 pterm 输出
func ApplyLogLevel(cmd *cobra.Command) {
	flag := cmd.Flags().Lookup("log-level")
	if flag == nil || !flag.Changed {
		return
	}
	level := viper.GetString("log.level")
	_ = os.Setenv(LogLevelEnv, level)

	switch level {
	case "debug":
		pterm.EnableDebugMessages()
	case "info":
		pterm.DisableDebugMessages()
	case "warn", "error", "fatal":
		pterm.DisableDebugMessages()
		pterm.Info = *pterm.Info.WithWriter(io.Discard)
	}
}

// SignalContext SIGINT/SIGTERM 时取消
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
