package main

import (
	"context"
	"errors"

	"github.com/pma-it-suite/daemon/cmd/internal/cli"
	"github.com/pma-it-suite/daemon/internal/app/agent"
	"github.com/pma-it-suite/daemon/internal/pkg/logger"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动命令循环，直到收到 SIGINT/SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAgent() error {
	app, err := agent.NewApp(cfgFile)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	err = app.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Infof("pma agent exiting")
		return nil
	}
	return err
}
