// Package main is the entry point for hostwired, the ambient CLI embedding
// around the hostwire engine: it resolves and validates configuration and
// reports on the registered component classes, but does not itself supply
// a transport.Transport or spawn a worker — that remains the embedder's job,
// per this module's scope.
package main

import (
	"fmt"
	"os"

	"github.com/hostwire/hostwire/cmd/hostwired/cmd"
)

var (
	// Version information, set by ldflags during build.
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime, GitCommit)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
