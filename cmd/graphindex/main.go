// Package main provides the entry point for the graphindex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/graphindex/cmd/graphindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
