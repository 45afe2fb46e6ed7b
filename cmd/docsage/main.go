package main

import (
	"os"

	"github.com/docsage-labs/docsage-cli/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
