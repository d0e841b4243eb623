// Package main is the entry point for the avalancheup CLI.
//
// avalancheup provisions avalanche node fleets on AWS from a single
// declarative spec file: it creates the supporting resources (bucket,
// KMS key, key pair, IAM role, VPC) and the auto-scaling groups, then
// waits for every node to report ready.
//
// Commands: default-spec, apply, delete.
//
// For detailed usage information, run:
//
//	avalancheup --help
package main

import (
	"fmt"
	"os"

	"github.com/gyuho/avalanche-ops/cmd/avalancheup/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.SetVersionInfo(version, commit)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
