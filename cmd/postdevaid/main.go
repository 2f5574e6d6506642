// Package main provides the entry point for the postdevaid CLI.
package main

import (
	"os"

	"github.com/postdevai/postdevai/cmd/postdevaid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
