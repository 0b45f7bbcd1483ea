// Package main provides the entry point for the indexstager CLI.
package main

import (
	"os"

	"github.com/kailas-cloud/indexstager/cmd/indexstager/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
