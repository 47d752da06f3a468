package main

import (
	"os"

	"github.com/breezy-release/breezy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
