package main

import (
	"os"

	"github.com/redochen/ccnetcore/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
