package main

import (
	"os"

	"github.com/itohio/goafe/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
