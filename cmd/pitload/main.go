package main

import (
	"os"

	"pitpipe/internal/cli"
)

func main() {
	// Commands report their own errors in the selected format
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
