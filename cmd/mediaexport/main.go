// Package main is the entry point for the mediaexport application.
package main

import (
	"os"

	"github.com/astralstream/mediaexport/cmd/mediaexport/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
