package main

import "github.com/pma-it-suite/daemon/cmd/internal/cli"

func main() {
	cli.Execute(rootCmd)
}
