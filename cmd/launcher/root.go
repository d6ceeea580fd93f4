/*
 * @author: Sun977
 * @date: 2026.10.14
 * @description: Cobra Root Command 定义
 */

package main

import (
	"context"
	"errors"

	"github.com/pma-it-suite/daemon/cmd/internal/cli"
	"github.com/pma-it-suite/daemon/internal/app/launcher"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
)

// rootCmd 不带子命令时等同于 run
var rootCmd = &cobra.Command{
	Use:   "pma-launcher",
	Short: "pma 设备代理的安装与升级守护",
	Long: `pma-launcher 负责在设备上安装、升级并托管 pma-agent 系统服务。
它定期检查控制端发布的版本，只在发布版本更高时升级，不会降级。

示例:
  1.进入对账循环(默认)
	pma-launcher run
  2.控制已安装的服务
	pma-launcher start|stop|restart
  3.执行一次对账并退出
	pma-launcher once
  4.查看本地状态
	pma-launcher status
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.ApplyLogLevel(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLauncher()
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "进入对账循环，直到收到 SIGINT/SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLauncher()
	},
}

func init() {
	cli.BindGlobalFlags(rootCmd, &cfgFile)
	rootCmd.AddCommand(runCmd)
}

func runLauncher() error {
	app, err := launcher.NewApp(cfgFile)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	err = app.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Infof("pma launcher exiting")
		return nil
	}
	return err
}
