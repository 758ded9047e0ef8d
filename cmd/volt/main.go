// Package main is the entry point for the volt publishing CLI.
package main

import (
	"os"

	"github.com/plugin-registry/plugin-registry/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
