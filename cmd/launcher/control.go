/*
 * @author: Sun977
 * @date: 2026.10.14
 * @description: start/stop/restart/once 一次性子命令
 */

package main

import (
	"fmt"

	"github.com/pma-it-suite/daemon/cmd/internal/cli"
	"github.com/pma-it-suite/daemon/internal/app/launcher"
	launchersvc "github.com/pma-it-suite/daemon/internal/service/launcher"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newControlCmd(action launchersvc.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := launcher.NewApp(cfgFile)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := cli.SignalContext()
			defer stop()

			if err := app.Control(ctx, action); err != nil {
				return fmt.Errorf("%s %s: %w", action, app.GetConfig().Service.Label, err)
			}
			pterm.Success.Printf("%s %s\n", action, app.GetConfig().Service.Label)
			return nil
		},
	}
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "执行一次对账后退出，失败时返回非零码",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := launcher.NewApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := cli.SignalContext()
		defer stop()

		outcome, err := app.Once(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		pterm.Success.Printf("reconcile finished: %s\n", outcome)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newControlCmd(launchersvc.ActionStart, "启动已安装的服务"))
	rootCmd.AddCommand(newControlCmd(launchersvc.ActionStop, "停止已安装的服务"))
	rootCmd.AddCommand(newControlCmd(launchersvc.ActionRestart, "重启已安装的服务"))
	rootCmd.AddCommand(onceCmd)
}
