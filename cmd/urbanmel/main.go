// Package main provides the entry point for the urbanmel CLI.
package main

import (
	"fmt"
	"os"

	"github.com/maauso/urbanmel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
