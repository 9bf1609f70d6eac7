// Package main provides the entry point for the hrdesk CLI.
package main

import (
	"os"

	"github.com/randalmurphal/hrdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
