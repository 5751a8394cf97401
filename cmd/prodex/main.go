// Package main is the entry point for the prodex CLI.
package main

import (
	"os"

	"github.com/hexleaf/prodex/cmd/prodex/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
