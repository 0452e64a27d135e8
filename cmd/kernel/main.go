package main

import (
	"os"

	"github.com/orchestrator/kernel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
