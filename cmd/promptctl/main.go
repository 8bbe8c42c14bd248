package main

import (
	"os"

	"github.com/zero-day-ai/promptkit/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
