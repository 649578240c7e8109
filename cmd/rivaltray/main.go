// Package main is the entry point for the rivaltray CLI and daemon.
package main

import (
	"os"

	"github.com/rivaltray-io/rivaltray/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
