// Package main is the entry point for the vodpackager demonstration CLI.
package main

import (
	"os"

	"github.com/jmylchreest/vodpackager/cmd/vodpackager/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
