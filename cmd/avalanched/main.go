// Package main is the entry point for the avalanched agent.
//
// avalanched runs on every provisioned instance. Launched by
// cloud-init, it reads its configuration from instance tags, installs
// and starts the node, and announces readiness through the cluster
// bucket.
package main

import (
	"fmt"
	"os"

	"github.com/gyuho/avalanche-ops/cmd/avalanched/commands"
)

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
