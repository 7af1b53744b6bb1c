// Command taskgraph is the CLI entry point for the task orchestration
// engine: plan, execute, resume, synthesize, inspect, and validate.
package main

import (
	"fmt"
	"os"

	"github.com/taskgraph/taskgraph/internal/cmd"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	cmd.Version = version
	root := cmd.NewRootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
