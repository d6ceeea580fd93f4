/*
 * @author: Sun977
 * @date: 2026.10.14
 * @description: Cobra Root Command 定义
 */

package main

import (
	"github.com/pma-it-suite/daemon/cmd/internal/cli"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
)

// rootCmd 不带子命令时等同于 run
var rootCmd = &cobra.Command{
	Use:   "pma-agent",
	Short: "pma 设备命令代理",
	Long: `pma-agent 由 Launcher 以系统服务方式安装和启动。
它向控制端注册设备，轮询下发的命令，确认收到后执行并上报结果。

示例:
  1.前台运行(默认)
	pma-agent run
  2.指定配置文件与日志级别
	pma-agent run --config /etc/pma/config.yaml --log-level debug
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.ApplyLogLevel(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent()
	},
	SilenceUsage: true,
}

func init() {
	cli.BindGlobalFlags(rootCmd, &cfgFile)
}
