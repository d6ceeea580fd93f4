/*
 * @author: Sun977
 * @date: 2026.10.14
 * @description: 本地联调用模拟控制端
 */

package main

import (
	"github.com/pma-it-suite/daemon/cmd/internal/cli"
	"github.com/pma-it-suite/daemon/internal/app/mockserver"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "pma-mockserver",
	Short: "pma 模拟控制端",
	Long: `pma-mockserver 在本地实现设备侧用到的控制端接口，数据只保存在内存中。
通过 /admin 接口下发命令、调整发布版本。

示例:
  pma-mockserver --listen 127.0.0.1:5001
  curl -X POST localhost:5001/admin/commands -d '{"device_id":"...","name":"ShellCmd","args":"uname -a"}'
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.ApplyLogLevel(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := mockserver.NewApp(cfgFile, listenAddr)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := cli.SignalContext()
		defer stop()
		return app.Serve(ctx)
	},
	SilenceUsage: true,
}

func init() {
	cli.BindGlobalFlags(rootCmd, &cfgFile)
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "监听地址，覆盖 mock_server.listen")
}
