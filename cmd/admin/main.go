package main

import (
	"os"

	"github.com/painel-dev/painel/internal/admin"
)

func main() {
	if err := admin.Execute(); err != nil {
		os.Exit(1)
	}
}
