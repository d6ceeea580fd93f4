package main

import (
	"fmt"

	"github.com/pma-it-suite/daemon/internal/pkg/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Long:  "显示 pma-agent 的版本信息，包括版本号、构建时间、Git 提交和 Go 版本。",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pma-agent %s\n", version.GetFullVersion())
		fmt.Printf("User-Agent: %s\n", version.GetUserAgent())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
