package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pma-it-suite/daemon/internal/app/launcher"
	"github.com/pma-it-suite/daemon/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "以 YAML 输出本地状态与服务状态",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := launcher.NewApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Status(context.Background())
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(report)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "输出生效的配置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := launcher.NewApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := config.Dump(app.GetConfig())
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}
