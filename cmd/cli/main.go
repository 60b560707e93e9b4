package main

import (
	"os"

	"github.com/painel-dev/painel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
