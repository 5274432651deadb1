package main

import (
	"os"

	"github.com/copyleftdev/sigmos/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
